package service

import (
	"context"
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AuthService runs the fixed, ordered, short-circuiting authorization
// chain. Every stage either advances the request context or aborts the
// chain with exactly one gateway error; no stage retries.
type AuthService struct {
	cfg           *types.SaiGatewayConfig
	repos         *repository.Repositories
	acl           *ACLService
	localRegistry *models.Registry
	logger        saiTypes.Logger
}

func NewAuthService(cfg *types.SaiGatewayConfig, repos *repository.Repositories, acl *ACLService, localRegistry *models.Registry) *AuthService {
	return &AuthService{
		cfg:           cfg,
		repos:         repos,
		acl:           acl,
		localRegistry: localRegistry,
		logger:        sai.Logger(),
	}
}

type pipelineStage func(ctx context.Context, rc *RequestContext) *models.GatewayError

// Authorize runs the full chain for a service request. The descriptor
// ACL is pinned before the service gate; an identity-level package
// override can only replace it once the identity has resolved, right
// before the final API permission decision.
func (s *AuthService) Authorize(ctx context.Context, rc *RequestContext) *models.GatewayError {
	stages := []pipelineStage{
		s.throttleCheck,
		s.aclDefaultCheck,
		s.serviceCheck,
		s.geoCheck,
		s.deviceCheck,
		s.oauthCheck,
		s.identityCheck,
		s.aclOverrideCheck,
		s.apiCheck,
	}
	for _, stage := range stages {
		if gerr := stage(ctx, rc); gerr != nil {
			return gerr
		}
	}
	return nil
}

// AuthorizeProxyRoute runs the subset of the chain that does not depend
// on a target service ACL. Cross-environment proxy routes have no local
// service to resolve rules for; tenant-key restrictions still apply.
func (s *AuthService) AuthorizeProxyRoute(ctx context.Context, rc *RequestContext) *models.GatewayError {
	stages := []pipelineStage{
		s.throttleCheck,
		s.geoCheck,
		s.deviceCheck,
		s.identityCheck,
	}
	for _, stage := range stages {
		if gerr := stage(ctx, rc); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (s *AuthService) throttleCheck(ctx context.Context, rc *RequestContext) *models.GatewayError {
	if !s.cfg.Throttle.Enabled || s.repos.RateLimiter == nil {
		return nil
	}

	allowed, err := s.repos.RateLimiter.CheckRate(ctx, rc.Key.Tenant.Code, s.cfg.Throttle.Limit, s.cfg.Throttle.Window)
	if err != nil {
		// throttling is advisory: a broken limiter never blocks traffic
		s.logger.Error("rate limit check failed", zap.Error(err), zap.String("tenant", rc.Key.Tenant.Code))
		return nil
	}
	if !allowed {
		return models.GetError(models.ErrTooManyRequests)
	}
	return nil
}

func (s *AuthService) aclDefaultCheck(_ context.Context, rc *RequestContext) *models.GatewayError {
	rc.FinalACL = rc.Descriptor.FinalACL
	return nil
}

func (s *AuthService) aclOverrideCheck(ctx context.Context, rc *RequestContext) *models.GatewayError {
	return s.acl.ResolveOverride(ctx, rc)
}

func (s *AuthService) serviceCheck(_ context.Context, rc *RequestContext) *models.GatewayError {
	return s.acl.CheckService(rc)
}

// geoCheck tests the caller IP against the tenant key deny list first,
// then the allow list. Malformed CIDR blocks are logged and treated as
// non-matching.
func (s *AuthService) geoCheck(_ context.Context, rc *RequestContext) *models.GatewayError {
	geo := rc.Key.Geo
	if geo == nil || rc.ClientIP == "" {
		return nil
	}
	ip := net.ParseIP(rc.ClientIP)
	if ip == nil {
		return nil
	}

	if len(geo.Deny) > 0 && s.cidrMatch(geo.Deny, ip) {
		return models.GetError(models.ErrGeoDenied)
	}
	if len(geo.Allow) > 0 && !s.cidrMatch(geo.Allow, ip) {
		return models.GetError(models.ErrGeoDenied)
	}
	return nil
}

func (s *AuthService) cidrMatch(blocks []string, ip net.IP) bool {
	for _, block := range blocks {
		spec := block
		if !strings.Contains(spec, "/") {
			if strings.Contains(spec, ":") {
				spec += "/128"
			} else {
				spec += "/32"
			}
		}
		_, network, err := net.ParseCIDR(spec)
		if err != nil {
			s.logger.Error("geographic security configuration failed", zap.String("block", block), zap.Error(err))
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// deviceCheck tests the parsed caller user agent against the tenant key
// deny list first, then the allow list.
func (s *AuthService) deviceCheck(_ context.Context, rc *RequestContext) *models.GatewayError {
	device := rc.Key.Device
	if device == nil || rc.UserAgent == "" {
		return nil
	}
	client := parseClientDevice(rc.UserAgent)
	if client == nil {
		return nil
	}

	if len(device.Deny) > 0 && deviceMatch(device.Deny, client) {
		return models.GetError(models.ErrDeviceDenied)
	}
	if len(device.Allow) > 0 && !deviceMatch(device.Allow, client) {
		return models.GetError(models.ErrDeviceDenied)
	}
	return nil
}

// oauthCheck decides whether the target API is public and, when it is
// not, verifies the bearer token with the external oauth collaborator.
// The oauth service's own token and authorization endpoints are always
// reachable, and tenants with oauth disabled skip verification.
func (s *AuthService) oauthCheck(ctx context.Context, rc *RequestContext) *models.GatewayError {
	if rc.Descriptor.Name == s.cfg.OAuth.Name &&
		(rc.Descriptor.Path == s.cfg.OAuth.TokenAPI || rc.Descriptor.Path == s.cfg.OAuth.AuthorizationAPI) {
		return nil
	}

	api := rc.FinalACL.FindAPI(rc.Descriptor.Path)
	if IsAPIPublic(rc.FinalACL, api, rc.AccessTokenParam) {
		return nil
	}

	if rc.Key.OAuth.IsDisabled() {
		return nil
	}

	token, err := s.repos.OAuth.Verify(ctx, rc.AccessToken)
	if err != nil {
		s.logger.Warn("oauth verification failed",
			zap.String("service", rc.Descriptor.Name),
			zap.String("path", rc.Descriptor.Path),
			zap.Error(err))
		return models.GetError(models.ErrOAuthFailed)
	}
	rc.Token = token
	return nil
}

// identityCheck builds the identity for a verified token. Tokens issued
// for the dashboard environment roam: tenant and registry data are
// fetched in parallel for the token's own client and environment, and a
// roaming context is attached before the identity resolves.
func (s *AuthService) identityCheck(ctx context.Context, rc *RequestContext) *models.GatewayError {
	if rc.Token == nil {
		return nil
	}

	if rc.Token.Env == "dashboard" {
		roaming := &models.Roaming{TID: rc.Token.ClientID}
		if rc.Token.User != nil {
			roaming.User = rc.Token.User.Username
		}

		var tenant *models.Tenant
		var registry *models.Registry

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if rc.Token.ClientID == rc.Key.Tenant.ID {
				tenant = &models.Tenant{ID: rc.Key.Tenant.ID, Code: rc.Key.Tenant.Code}
				return nil
			}
			t, err := s.repos.Provisioning.GetTenantData(gctx, rc.Token.ClientID)
			if err != nil {
				return err
			}
			tenant = t
			return nil
		})
		g.Go(func() error {
			if strings.EqualFold(rc.Token.Env, s.cfg.Environment) {
				registry = s.localRegistry
				return nil
			}
			r, err := s.repos.Registry.LoadByEnvironment(gctx, rc.Token.Env)
			if err != nil {
				return err
			}
			registry = r
			return nil
		})
		if err := g.Wait(); err != nil {
			s.logger.Error("roaming resolution failed",
				zap.String("clientId", rc.Token.ClientID),
				zap.String("env", rc.Token.Env),
				zap.Error(err))
			return models.GetError(models.ErrRoamingResolutionFailed)
		}

		roaming.Code = tenant.Code
		if registry != nil {
			roaming.TenantMetaDB = registry.TenantMetaDB
		}
		rc.Roaming = roaming
	}

	return s.resolveIdentity(ctx, rc)
}

func (s *AuthService) resolveIdentity(ctx context.Context, rc *RequestContext) *models.GatewayError {
	adapter := AdapterFromToken(rc.Token, s.cfg.OAuth.GetUserFromToken, s.repos.Identity)
	if _, err := adapter.Resolve(ctx); err != nil {
		// a token whose profile cannot be fetched carries no usable
		// identity; locked services reject the caller downstream
		s.logger.Error("identity resolution failed", zap.Error(err))
		rc.ServicesConfig = rc.Key.Config.Merge(nil)
		return nil
	}

	userConf := adapter.MergedServiceConfig(rc.Key.Key)
	rc.ServicesConfig = rc.Key.Config.Merge(userConf)
	rc.Identity = adapter
	return nil
}

func (s *AuthService) apiCheck(_ context.Context, rc *RequestContext) *models.GatewayError {
	return s.acl.CheckAPI(rc)
}

// clientDevice is the parsed user agent tested by device rules.
type clientDevice struct {
	Family string
	Major  string
	Minor  string
	Patch  string
	OS     struct {
		Family string
		Major  string
		Minor  string
		Patch  string
	}
}

func parseClientDevice(ua string) *clientDevice {
	parsed := useragent.New(ua)
	family, version := parsed.Browser()
	if family == "" {
		return nil
	}

	client := &clientDevice{Family: family}
	client.Major, client.Minor, client.Patch = splitVersion(version)

	osInfo := parsed.OSInfo()
	client.OS.Family = osInfo.Name
	client.OS.Major, client.OS.Minor, client.OS.Patch = splitVersion(osInfo.Version)
	return client
}

func splitVersion(version string) (major, minor, patch string) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) > 0 {
		major = parts[0]
	}
	if len(parts) > 1 {
		minor = parts[1]
	}
	if len(parts) > 2 {
		patch = parts[2]
	}
	return major, minor, patch
}

// deviceMatch reports whether any rule in the list matches the client.
func deviceMatch(rules []models.DeviceRule, client *clientDevice) bool {
	for i := range rules {
		if deviceRuleMatches(&rules[i], client) {
			return true
		}
	}
	return false
}

func deviceRuleMatches(rule *models.DeviceRule, client *clientDevice) bool {
	if rule.Family != "" && rule.Family != "*" {
		if !strings.EqualFold(strings.TrimSpace(rule.Family), strings.TrimSpace(client.Family)) {
			return false
		}
	}
	if rule.OS != nil && rule.OS.Family != "" && rule.OS.Family != "*" {
		if client.OS.Family == "" {
			return false
		}
		if !strings.Contains(
			strings.ToUpper(strings.TrimSpace(client.OS.Family)),
			strings.ToUpper(strings.TrimSpace(rule.OS.Family)),
		) {
			return false
		}
		if !versionFieldMatches(rule.OS.Major, client.OS.Major) ||
			!versionFieldMatches(rule.OS.Minor, client.OS.Minor) ||
			!versionFieldMatches(rule.OS.Patch, client.OS.Patch) {
			return false
		}
	}
	if !versionFieldMatches(rule.Major, client.Major) ||
		!versionFieldMatches(rule.Minor, client.Minor) ||
		!versionFieldMatches(rule.Patch, client.Patch) {
		return false
	}
	return true
}

// versionFieldMatches applies one exact-or-range rule to one version
// component. Missing fields and "*" are always satisfied.
func versionFieldMatches(field *models.VersionField, value string) bool {
	if field == nil || value == "" {
		return true
	}
	value = strings.TrimSpace(value)
	if field.Exact != "" {
		if field.Exact == "*" {
			return true
		}
		return strings.EqualFold(strings.TrimSpace(field.Exact), value)
	}
	if field.Min != "" && strings.TrimSpace(field.Min) > value {
		return false
	}
	if field.Max != "" && strings.TrimSpace(field.Max) < value {
		return false
	}
	return true
}
