package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saiset-co/sai-gateway/internal/metrics"
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/types"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	headerRequestID      = "X-Request-Id"
	headerGatewayContext = "X-Gateway-Context"
	headerKey            = "key"

	defaultReadinessPath = "/heartbeat"
)

// hop-by-hop headers never forwarded in either direction
var skipHeaders = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Content-Length":    {},
	"Upgrade":           {},
}

// ProxyService streams requests to resolved backends. Local forwards
// run under a renewal watchdog that probes the backend maintenance port
// instead of enforcing a flat deadline; remote forwards get a flat
// timeout only.
type ProxyService struct {
	cfg       *types.SaiGatewayConfig
	transport *http.Client
	logger    saiTypes.Logger
}

func NewProxyService(cfg *types.SaiGatewayConfig) *ProxyService {
	return &ProxyService{
		cfg: cfg,
		// per-request deadlines come from contexts, never the client
		transport: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: sai.Logger(),
	}
}

// Forward proxies a service request to its resolved destination and
// streams the response back. The watchdog is armed unless disabled by
// configuration, in which case a flat timeout applies.
func (s *ProxyService) Forward(ctx *fasthttp.RequestCtx, rc *RequestContext, dest *Destination) *models.GatewayError {
	// cancellation is owned by the renewal state: the watchdog fires it
	// on abort, the body wrapper fires it when the client is done
	cctx, cancel := context.WithCancel(context.Background())

	var st *renewalState
	if s.cfg.RenewReqMonitorOff {
		var tcancel context.CancelFunc
		cctx, tcancel = context.WithTimeout(cctx, time.Duration(dest.RequestTimeout)*time.Second)
		st = &renewalState{cancel: func() { tcancel(); cancel() }}
	} else {
		st = s.armWatchdog(cancel, rc, dest)
	}

	target := dest.Address()
	uri := strings.TrimSuffix(target, "/") + rc.Descriptor.Path
	if qs := string(ctx.URI().QueryString()); qs != "" {
		uri += "?" + qs
	}

	req, err := s.buildOutbound(cctx, ctx, uri)
	if err != nil {
		st.finish()
		return models.GetError(models.ErrProxyConnectionError)
	}
	s.injectContext(req, rc)

	return s.execute(ctx, req, st, rc.Descriptor.Name)
}

// ForwardRemote proxies a cross-environment route to another gateway.
// No watchdog: the remote gateway owns its own backend supervision.
func (s *ProxyService) ForwardRemote(ctx *fasthttp.RequestCtx, target *models.RemoteEnvironmentTarget) *models.GatewayError {
	cctx, cancel := context.WithTimeout(context.Background(), target.Timeout)
	st := &renewalState{cancel: cancel}

	uri := target.URI
	if qs := filterQuery(ctx.URI().QueryString(), "proxyRoute", "__env", "tCode", "extKey"); qs != "" {
		uri += "?" + qs
	}

	req, err := s.buildOutbound(cctx, ctx, uri)
	if err != nil {
		st.finish()
		return models.GetError(models.ErrProxyConnectionError)
	}
	req.Header.Del(headerKey)
	if target.ExtKey != "" {
		req.Header.Set(headerKey, target.ExtKey)
	}

	return s.execute(ctx, req, st, "proxy")
}

func (s *ProxyService) buildOutbound(cctx context.Context, ctx *fasthttp.RequestCtx, uri string) (*http.Request, error) {
	var body io.Reader
	if ctx.Request.Header.ContentLength() != 0 {
		body = ctx.RequestBodyStream()
	}

	req, err := http.NewRequestWithContext(cctx, string(ctx.Method()), uri, body)
	if err != nil {
		return nil, err
	}
	if cl := ctx.Request.Header.ContentLength(); cl > 0 {
		req.ContentLength = int64(cl)
	}

	ctx.Request.Header.VisitAll(func(k, v []byte) {
		name := string(k)
		if _, skip := skipHeaders[http.CanonicalHeaderKey(name)]; skip || strings.EqualFold(name, "Host") {
			return
		}
		req.Header.Add(name, string(v))
	})
	req.Header.Set(headerRequestID, uuid.New().String())
	return req, nil
}

// injectContext attaches the tenant and identity context the backend
// consumes instead of re-resolving the key itself.
func (s *ProxyService) injectContext(req *http.Request, rc *RequestContext) {
	injected := map[string]interface{}{
		"tenant":      rc.Key.Tenant,
		"key":         rc.Key.Key,
		"application": rc.Key.Application,
	}
	if rc.ServicesConfig != nil {
		if svc, ok := rc.ServicesConfig[rc.Descriptor.Name]; ok {
			injected["config"] = svc
		}
	}
	if rc.Identity != nil {
		if profile := rc.Identity.Profile(false); profile != nil {
			injected["user"] = profile
		}
	}
	if rc.Roaming != nil {
		injected["roaming"] = rc.Roaming
	}

	raw, err := json.Marshal(injected)
	if err != nil {
		s.logger.Error("context injection failed", zap.Error(err))
		return
	}
	req.Header.Set(headerGatewayContext, string(raw))
}

func (s *ProxyService) execute(ctx *fasthttp.RequestCtx, req *http.Request, st *renewalState, service string) *models.GatewayError {
	resp, err := s.transport.Do(req)
	if err != nil {
		code := st.finish()
		if code != 0 {
			return models.GetError(code)
		}
		s.logger.Error("proxy request failed",
			zap.String("service", service),
			zap.String("uri", req.URL.String()),
			zap.Error(err))
		return models.GetError(models.ErrProxyConnectionError)
	}

	st.setContentType(resp.Header.Get(fasthttp.HeaderContentType))

	ctx.SetStatusCode(resp.StatusCode)
	for name, values := range resp.Header {
		if _, skip := skipHeaders[name]; skip {
			continue
		}
		for _, v := range values {
			ctx.Response.Header.Add(name, v)
		}
	}
	ctx.SetBodyStream(&proxyBody{rc: resp.Body, st: st}, int(resp.ContentLength))
	return nil
}

// armWatchdog starts the renewal timer for a forwarded request. The
// interval is the configured request timeout scaled down by a factor of
// ten, so the watchdog checks in several times before a flat deadline
// of the same length would have fired.
func (s *ProxyService) armWatchdog(cancel context.CancelFunc, rc *RequestContext, dest *Destination) *renewalState {
	st := &renewalState{
		ceiling:  dest.RequestTimeoutRenewal,
		interval: time.Duration(dest.RequestTimeout*100) * time.Millisecond,
		cancel:   cancel,
	}
	probe := s.heartbeatProbe(rc, dest)
	st.timer = time.AfterFunc(st.interval, func() { s.renew(st, probe, rc.Descriptor.Name) })
	return st
}

// renew runs at each watchdog interval. A streaming response suspends
// the watchdog for good: the request runs to natural completion with
// no further probes. Otherwise every interval consumes one renewal;
// failed heartbeats are retried until the ceiling terminates the
// request exactly once.
func (s *ProxyService) renew(st *renewalState, probe func() bool, service string) {
	st.mu.Lock()
	if st.done || st.terminated || st.streaming {
		st.mu.Unlock()
		return
	}
	if strings.Contains(st.contentType, "stream") {
		st.streaming = true
		st.timer.Stop()
		st.mu.Unlock()
		return
	}
	st.count++
	if st.count >= st.ceiling {
		st.terminated = true
		st.failCode = models.ErrRequestTimeoutExceeded
		st.mu.Unlock()
		s.logger.Warn("request timeout exceeded, renewal ceiling reached", zap.String("service", service))
		st.cancel()
		return
	}
	st.mu.Unlock()

	metrics.RenewalAttempts.Inc()
	alive := probe()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done || st.terminated {
		return
	}
	if alive {
		st.heartbeatFailed = false
	} else {
		st.heartbeatFailed = true
		s.logger.Warn("backend heartbeat failed, retrying until the renewal ceiling", zap.String("service", service))
	}
	st.timer.Reset(st.interval)
}

// heartbeatProbe builds the closure that checks the backend maintenance
// port. Inbound headers ride along so multi-tenant backends can answer
// readiness in the caller's context.
func (s *ProxyService) heartbeatProbe(rc *RequestContext, dest *Destination) func() bool {
	host := dest.Host
	port := s.maintenancePort(rc.Descriptor.Registry, dest.Port)
	path := defaultReadinessPath
	if reg := rc.Descriptor.Registry; reg != nil && reg.Maintenance != nil && reg.Maintenance.Readiness != "" {
		path = reg.Maintenance.Readiness
	}

	headers := map[string]string{}
	if rc.Key != nil {
		headers[headerKey] = rc.Key.ExtKey
	}

	return func() bool {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(fmt.Sprintf("http://%s:%d%s", host, port, path))
		req.Header.SetMethod(fasthttp.MethodGet)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		if err := fasthttp.DoTimeout(req, resp, 5*time.Second); err != nil {
			return false
		}
		return resp.StatusCode() >= 200 && resp.StatusCode() < 300
	}
}

// maintenancePort derives the readiness port for a service. Explicit
// registry values win; the default is the service port offset by the
// configured increment.
func (s *ProxyService) maintenancePort(reg *models.ServiceRegistry, servicePort int) int {
	if reg != nil && reg.Maintenance != nil && reg.Maintenance.Port != nil {
		switch reg.Maintenance.Port.Type {
		case models.MaintenancePortOffset:
			return servicePort + s.cfg.MaintenancePortInc
		case models.MaintenancePortInherit:
			return servicePort
		default:
			if reg.Maintenance.Port.Value > 0 {
				return reg.Maintenance.Port.Value
			}
		}
	}
	return servicePort + s.cfg.MaintenancePortInc
}

// renewalState tracks one forwarded request's watchdog. All mutable
// fields are guarded by mu; cancel aborts the in-flight upstream call.
type renewalState struct {
	mu              sync.Mutex
	count           int
	ceiling         int
	streaming       bool
	terminated      bool
	done            bool
	heartbeatFailed bool
	failCode        int
	contentType     string
	interval        time.Duration
	timer           *time.Timer
	cancel          context.CancelFunc
}

func (st *renewalState) setContentType(ct string) {
	st.mu.Lock()
	st.contentType = strings.ToLower(ct)
	st.mu.Unlock()
}

// finish stops the watchdog and releases the upstream call. It returns
// the failure code when the watchdog already terminated the request, or
// flags the backend as unresponsive when the transport collapsed right
// after a failed heartbeat, so the caller maps the error accurately.
func (st *renewalState) finish() int {
	st.mu.Lock()
	st.done = true
	code := 0
	switch {
	case st.terminated:
		code = st.failCode
	case st.heartbeatFailed:
		code = models.ErrBackendUnresponsive
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.mu.Unlock()
	if st.cancel != nil {
		st.cancel()
	}
	return code
}

// proxyBody ties the response stream's lifetime to the watchdog: when
// the client finishes reading (or reading fails) the watchdog stops and
// the upstream connection is released.
type proxyBody struct {
	rc io.ReadCloser
	st *renewalState
}

func (b *proxyBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil {
		b.st.finish()
	}
	return n, err
}

func (b *proxyBody) Close() error {
	b.st.finish()
	return b.rc.Close()
}

// filterQuery strips the named parameters from a raw query string.
func filterQuery(raw []byte, strip ...string) string {
	if len(raw) == 0 {
		return ""
	}
	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(string(raw), "&") {
		name := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name = pair[:idx]
		}
		drop := false
		for _, s := range strip {
			if name == s {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, pair)
		}
	}
	return strings.Join(kept, "&")
}
