package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// CrossEnvService resolves /proxy-route requests into a remote gateway
// target: which environment, which address, and which external key to
// present there.
type CrossEnvService struct {
	cfg           *types.SaiGatewayConfig
	repos         *repository.Repositories
	localRegistry *models.Registry
	logger        saiTypes.Logger
}

func NewCrossEnvService(cfg *types.SaiGatewayConfig, repos *repository.Repositories, localRegistry *models.Registry) *CrossEnvService {
	return &CrossEnvService{
		cfg:           cfg,
		repos:         repos,
		localRegistry: localRegistry,
		logger:        sai.Logger(),
	}
}

// Resolve builds the remote target for a proxy route. The query
// parameter __env overrides the __env header when both are present; the
// external key comes from the extKey parameter, or is discovered by
// scanning the addressed tenant for a dashboard-access key in the
// target environment.
func (s *CrossEnvService) Resolve(ctx context.Context, fctx *fasthttp.RequestCtx, rc *RequestContext) (*models.RemoteEnvironmentTarget, *models.GatewayError) {
	args := fctx.QueryArgs()

	route := string(args.Peek("proxyRoute"))
	if route == "" {
		return nil, models.GetError(models.ErrMissingRoute)
	}

	env := string(fctx.Request.Header.Peek("__env"))
	if qEnv := string(args.Peek("__env")); qEnv != "" {
		env = qEnv
	}
	env = strings.ToUpper(env)

	extKey, gerr := s.remoteExtKey(ctx, args, rc, env)
	if gerr != nil {
		return nil, gerr
	}

	target, gerr := s.remoteAddress(ctx, env)
	if gerr != nil {
		return nil, gerr
	}
	target.URI += route
	target.ExtKey = extKey
	if env == "" {
		// no destination environment addressed: flat 30 second default
		target.Timeout = 30 * time.Second
	} else {
		target.Timeout = time.Duration(s.cfg.RequestTimeout) * time.Second
	}
	return target, nil
}

// remoteExtKey picks the external key presented to the remote gateway.
// An explicit extKey parameter wins; otherwise the tenant addressed by
// tCode (defaulting to the caller's tenant) is scanned for a
// dashboard-access key in the target environment.
func (s *CrossEnvService) remoteExtKey(ctx context.Context, args *fasthttp.Args, rc *RequestContext, env string) (string, *models.GatewayError) {
	if extKey := string(args.Peek("extKey")); extKey != "" {
		return extKey, nil
	}

	tCode := string(args.Peek("tCode"))
	if tCode == "" && rc.Key != nil {
		tCode = rc.Key.Tenant.Code
	}
	if tCode == "" || env == "" {
		return "", nil
	}

	tenant, err := s.repos.Provisioning.GetTenantByCode(ctx, tCode)
	if err != nil {
		s.logger.Error("tenant lookup for proxy route failed", zap.String("tCode", tCode), zap.Error(err))
		return "", models.GetError(models.ErrMissingRoute)
	}
	extKey := tenant.DashboardExtKey(strings.ToLower(env))
	if extKey == "" {
		return "", models.GetError(models.ErrNoRemoteKeyFound)
	}
	return extKey, nil
}

// remoteAddress composes the base URI of the gateway serving env. An
// empty or local env short-circuits to this gateway's own registry
// entry; anything else loads the remote environment registry.
func (s *CrossEnvService) remoteAddress(ctx context.Context, env string) (*models.RemoteEnvironmentTarget, *models.GatewayError) {
	reg := s.localRegistry
	if env != "" && !strings.EqualFold(env, s.cfg.Environment) {
		remote, err := s.repos.Registry.LoadByEnvironment(ctx, env)
		if err != nil {
			s.logger.Error("remote registry unavailable", zap.String("env", env), zap.Error(err))
			return nil, models.GetError(models.ErrRemoteRegistryUnavailable)
		}
		reg = remote
	}

	if reg == nil || reg.Protocol == "" || reg.Domain == "" {
		return nil, models.GetError(models.ErrRemoteRegistryMisconfigured)
	}

	domain := reg.Domain
	if reg.APIPrefix != "" {
		domain = reg.APIPrefix + "." + domain
	}
	uri := fmt.Sprintf("%s://%s", reg.Protocol, domain)
	if reg.Port > 0 {
		uri = fmt.Sprintf("%s:%d", uri, reg.Port)
	}

	return &models.RemoteEnvironmentTarget{
		Protocol: reg.Protocol,
		Domain:   domain,
		Port:     reg.Port,
		URI:      uri,
	}, nil
}
