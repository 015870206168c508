package handlers

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-gateway/internal/metrics"
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/internal/service"
	"github.com/saiset-co/sai-gateway/types"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
)

// proxyServiceName is the reserved first path segment that routes a
// request through the cross-environment proxy instead of a local
// service.
const proxyServiceName = "proxy"

var versionSegment = regexp.MustCompile(`^v(\d+(?:\.\d+)?)$`)

// GatewayHandler is the data-plane entry point: every inbound request
// passes through routing, the authorization chain and the proxy here.
type GatewayHandler struct {
	cfg           *types.SaiGatewayConfig
	repos         *repository.Repositories
	auth          *service.AuthService
	resolver      *service.ResolverService
	proxy         *service.ProxyService
	crossEnv      *service.CrossEnvService
	localRegistry *models.Registry
	logger        saiTypes.Logger
}

func NewGatewayHandler(
	cfg *types.SaiGatewayConfig,
	repos *repository.Repositories,
	auth *service.AuthService,
	resolver *service.ResolverService,
	proxy *service.ProxyService,
	crossEnv *service.CrossEnvService,
	localRegistry *models.Registry,
) *GatewayHandler {
	return &GatewayHandler{
		cfg:           cfg,
		repos:         repos,
		auth:          auth,
		resolver:      resolver,
		proxy:         proxy,
		crossEnv:      crossEnv,
		localRegistry: localRegistry,
		logger:        sai.Logger(),
	}
}

// Handle processes one proxied request end to end.
func (h *GatewayHandler) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()

	name, version, rest := splitRoute(string(ctx.Path()))
	if name == "" {
		h.renderError(ctx, name, models.GetError(models.ErrMissingRoute))
		return
	}

	keyRec, gerr := h.resolveKey(ctx)
	if gerr != nil {
		h.renderError(ctx, name, gerr)
		return
	}

	rc := h.newRequestContext(ctx, keyRec)

	if name == proxyServiceName {
		h.handleProxyRoute(ctx, rc, rest, start)
		return
	}

	reg := h.localRegistry.Services[name]
	if reg == nil {
		h.renderError(ctx, name, models.GetError(models.ErrConfigurationMissing))
		return
	}

	rc.Descriptor = &models.ServiceRequestDescriptor{
		Name:     name,
		Version:  version,
		Path:     rest,
		Method:   string(ctx.Method()),
		Registry: reg,
		Key:      keyRec,
		FinalACL: keyRec.ACL[name].NarrowVersion(version).NarrowMethod(string(ctx.Method())),
	}

	if gerr := h.auth.Authorize(ctx, rc); gerr != nil {
		metrics.AuthRejections.WithLabelValues(strconv.Itoa(gerr.Code)).Inc()
		h.renderError(ctx, name, gerr)
		return
	}

	dest, gerr := h.resolver.Resolve(ctx, rc)
	if gerr != nil {
		h.renderError(ctx, name, gerr)
		return
	}

	if gerr := h.proxy.Forward(ctx, rc, dest); gerr != nil {
		h.renderError(ctx, name, gerr)
		return
	}

	metrics.ProxiedRequests.WithLabelValues(name, "success").Inc()
	metrics.ProxyDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// handleProxyRoute runs the cross-environment path. The target service
// lives in another environment, so only the key-level restrictions
// (throttle, geo, device) and identity attach here; the remote gateway
// enforces its own ACL.
func (h *GatewayHandler) handleProxyRoute(ctx *fasthttp.RequestCtx, rc *service.RequestContext, rest string, start time.Time) {
	rc.Descriptor = &models.ServiceRequestDescriptor{
		Name:   proxyServiceName,
		Path:   rest,
		Method: string(ctx.Method()),
		Key:    rc.Key,
	}

	if gerr := h.auth.AuthorizeProxyRoute(ctx, rc); gerr != nil {
		metrics.AuthRejections.WithLabelValues(strconv.Itoa(gerr.Code)).Inc()
		h.renderError(ctx, proxyServiceName, gerr)
		return
	}

	target, gerr := h.crossEnv.Resolve(ctx, ctx, rc)
	if gerr != nil {
		h.renderError(ctx, proxyServiceName, gerr)
		return
	}

	if gerr := h.proxy.ForwardRemote(ctx, target); gerr != nil {
		h.renderError(ctx, proxyServiceName, gerr)
		return
	}

	metrics.ProxiedRequests.WithLabelValues(proxyServiceName, "success").Inc()
	metrics.ProxyDuration.WithLabelValues(proxyServiceName).Observe(time.Since(start).Seconds())
}

func (h *GatewayHandler) resolveKey(ctx *fasthttp.RequestCtx) (*models.KeyRecord, *models.GatewayError) {
	extKey := string(ctx.Request.Header.Peek("key"))
	if extKey == "" {
		return nil, models.GetError(models.ErrKeyRequired)
	}
	keyRec, err := h.repos.Provisioning.GetExtKeyData(ctx, extKey, h.cfg.Environment)
	if err != nil || keyRec == nil {
		if err != nil {
			h.logger.Warn("external key resolution failed", zap.Error(err))
		}
		return nil, models.GetError(models.ErrKeyRequired)
	}
	return keyRec, nil
}

func (h *GatewayHandler) newRequestContext(ctx *fasthttp.RequestCtx, keyRec *models.KeyRecord) *service.RequestContext {
	rc := &service.RequestContext{
		Key:       keyRec,
		ClientIP:  clientIP(ctx),
		UserAgent: string(ctx.UserAgent()),
	}

	if auth := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			rc.AccessToken = token
		}
	}
	if token := string(ctx.QueryArgs().Peek("access_token")); token != "" {
		rc.AccessToken = token
		rc.AccessTokenParam = true
	}
	return rc
}

func (h *GatewayHandler) renderError(ctx *fasthttp.RequestCtx, name string, gerr *models.GatewayError) {
	metrics.ProxiedRequests.WithLabelValues(name, "error").Inc()

	ctx.SetStatusCode(gerr.Status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(types.NewErrorResponse(gerr.Code, gerr.Message)); err != nil {
		h.logger.Error("error response encoding failed", zap.Error(err))
	}
}

// splitRoute breaks "/math/v1/add" into service name, version and the
// remaining path forwarded to the backend. The version segment is
// optional.
func splitRoute(path string) (name, version, rest string) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", "", "/"
	}

	parts := strings.SplitN(trimmed, "/", 3)
	name = parts[0]
	rest = "/"
	idx := 1
	if len(parts) > 1 {
		if m := versionSegment.FindStringSubmatch(parts[1]); m != nil {
			version = m[1]
			idx = 2
		}
	}
	remainder := strings.Join(parts[idx:], "/")
	if remainder != "" {
		rest = "/" + remainder
	}
	return name, version, rest
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	if fwd := string(ctx.Request.Header.Peek("X-Forwarded-For")); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	return ctx.RemoteIP().String()
}
