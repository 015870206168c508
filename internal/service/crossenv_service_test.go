package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
)

func testCrossEnv(repos *repository.Repositories, local *models.Registry) *CrossEnvService {
	return &CrossEnvService{
		cfg:           &types.SaiGatewayConfig{Environment: "stg", RequestTimeout: 30},
		repos:         repos,
		localRegistry: local,
		logger:        nopLogger{},
	}
}

func proxyCtx(uri string, headers map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(uri)
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	return ctx
}

func TestCrossEnvMissingRoute(t *testing.T) {
	svc := testCrossEnv(&repository.Repositories{}, &models.Registry{Protocol: "http", Domain: "local"})

	_, gerr := svc.Resolve(context.Background(), proxyCtx("/proxy/redirect", nil), &RequestContext{})
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrMissingRoute, gerr.Code)
}

func TestCrossEnvExplicitExtKey(t *testing.T) {
	remote := &models.Registry{Protocol: "https", Domain: "example.com", APIPrefix: "api", Port: 443}
	repos := &repository.Repositories{
		Registry: &fakeRegistry{registries: map[string]*models.Registry{"PROD": remote}},
	}
	svc := testCrossEnv(repos, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/urac/user&__env=prod&extKey=explicit-key", nil)
	target, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, "explicit-key", target.ExtKey)
	assert.Equal(t, "https://api.example.com:443/urac/user", target.URI)
	assert.Equal(t, 30*time.Second, target.Timeout)
}

func TestCrossEnvQueryEnvOverridesHeader(t *testing.T) {
	prod := &models.Registry{Protocol: "https", Domain: "prod.example.com"}
	repos := &repository.Repositories{
		Registry: &fakeRegistry{registries: map[string]*models.Registry{"PROD": prod}},
	}
	svc := testCrossEnv(repos, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&extKey=k", map[string]string{"__env": "DEV"})
	target, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, "https://prod.example.com/x", target.URI)
}

func TestCrossEnvDashboardKeyDiscovery(t *testing.T) {
	tenant := &models.Tenant{
		Code: "ACME",
		Applications: []models.Application{
			{Keys: []models.AppKey{{ExtKeys: []models.ExtKey{
				{ExtKey: "acme-prod-admin", Env: "prod", DashboardAccess: true},
			}}}},
		},
	}
	remote := &models.Registry{Protocol: "https", Domain: "prod.example.com"}
	repos := &repository.Repositories{
		Provisioning: &fakeProvisioning{tenants: map[string]*models.Tenant{"ACME": tenant}},
		Registry:     &fakeRegistry{registries: map[string]*models.Registry{"PROD": remote}},
	}
	svc := testCrossEnv(repos, nil)

	// tenant code from the caller's key when the tCode parameter is absent
	rc := &RequestContext{Key: &models.KeyRecord{Tenant: models.TenantRef{Code: "ACME"}}}
	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod", nil)
	target, gerr := svc.Resolve(context.Background(), ctx, rc)
	require.Nil(t, gerr)
	assert.Equal(t, "acme-prod-admin", target.ExtKey)

	// explicit tCode addresses another tenant
	ctx = proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&tCode=ACME", nil)
	target, gerr = svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, "acme-prod-admin", target.ExtKey)
}

func TestCrossEnvNoRemoteKey(t *testing.T) {
	tenant := &models.Tenant{Code: "ACME"}
	repos := &repository.Repositories{
		Provisioning: &fakeProvisioning{tenants: map[string]*models.Tenant{"ACME": tenant}},
	}
	svc := testCrossEnv(repos, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&tCode=ACME", nil)
	_, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrNoRemoteKeyFound, gerr.Code)
}

func TestCrossEnvUnknownTenant(t *testing.T) {
	svc := testCrossEnv(&repository.Repositories{Provisioning: &fakeProvisioning{}}, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&tCode=GHOST", nil)
	_, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrMissingRoute, gerr.Code)
}

func TestCrossEnvRegistryUnavailable(t *testing.T) {
	repos := &repository.Repositories{Registry: &fakeRegistry{}}
	svc := testCrossEnv(repos, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&extKey=k", nil)
	_, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrRemoteRegistryUnavailable, gerr.Code)
}

func TestCrossEnvRegistryMisconfigured(t *testing.T) {
	broken := &models.Registry{Protocol: "https"} // no domain
	repos := &repository.Repositories{
		Registry: &fakeRegistry{registries: map[string]*models.Registry{"PROD": broken}},
	}
	svc := testCrossEnv(repos, nil)

	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&extKey=k", nil)
	_, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrRemoteRegistryMisconfigured, gerr.Code)
}

func TestCrossEnvLocalEnvironment(t *testing.T) {
	local := &models.Registry{Protocol: "http", Domain: "localhost", Port: 4000}
	svc := testCrossEnv(&repository.Repositories{}, local)

	// no __env at all stays on this gateway
	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&extKey=k", nil)
	target, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, "http://localhost:4000/x", target.URI)

	// __env naming the local environment does too
	ctx = proxyCtx("/proxy/redirect?proxyRoute=/x&__env=stg&extKey=k", nil)
	target, gerr = svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, "http://localhost:4000/x", target.URI)
}

func TestCrossEnvFlatTimeout(t *testing.T) {
	local := &models.Registry{Protocol: "http", Domain: "localhost"}
	remote := &models.Registry{Protocol: "https", Domain: "prod.example.com"}
	repos := &repository.Repositories{
		Registry: &fakeRegistry{registries: map[string]*models.Registry{"PROD": remote}},
	}
	svc := testCrossEnv(repos, local)
	svc.cfg.RequestTimeout = 10

	// no destination environment: 30 second default regardless of the
	// configured timeout
	ctx := proxyCtx("/proxy/redirect?proxyRoute=/x&extKey=k", nil)
	target, gerr := svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, 30*time.Second, target.Timeout)

	// an addressed environment uses the configured timeout
	ctx = proxyCtx("/proxy/redirect?proxyRoute=/x&__env=prod&extKey=k", nil)
	target, gerr = svc.Resolve(context.Background(), ctx, &RequestContext{})
	require.Nil(t, gerr)
	assert.Equal(t, 10*time.Second, target.Timeout)
}
