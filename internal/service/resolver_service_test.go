package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
)

func testResolver(awareness repository.Awareness) *ResolverService {
	return &ResolverService{
		cfg:       &types.SaiGatewayConfig{RequestTimeout: 30, RequestTimeoutRenewal: 5},
		awareness: awareness,
		logger:    nopLogger{},
	}
}

func TestResolveMissingRegistry(t *testing.T) {
	svc := testResolver(&fakeAwareness{})
	rc := &RequestContext{
		Descriptor: &models.ServiceRequestDescriptor{Name: "math"},
		Key:        &models.KeyRecord{},
	}

	_, gerr := svc.Resolve(context.Background(), rc)
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrConfigurationMissing, gerr.Code)
}

func TestResolveFromAwareness(t *testing.T) {
	aw := &fakeAwareness{host: "10.0.0.5"}
	svc := testResolver(aw)
	rc := &RequestContext{
		Descriptor: &models.ServiceRequestDescriptor{
			Name:     "math",
			Version:  "1",
			Registry: &models.ServiceRegistry{Port: 4100, RequestTimeout: 10, RequestTimeoutRenewal: 3},
		},
		Key: &models.KeyRecord{},
	}

	dest, gerr := svc.Resolve(context.Background(), rc)
	require.Nil(t, gerr)
	assert.Equal(t, "10.0.0.5", dest.Host)
	assert.Equal(t, 4100, dest.Port)
	assert.Empty(t, dest.FullURI)
	assert.Equal(t, "http://10.0.0.5:4100", dest.Address())
	assert.Equal(t, "math", aw.lastService)
	assert.Equal(t, "1", aw.lastVersion)
	// registry timeouts beat the gateway defaults
	assert.Equal(t, 10, dest.RequestTimeout)
	assert.Equal(t, 3, dest.RequestTimeoutRenewal)
}

func TestResolveNoHealthyHost(t *testing.T) {
	rc := &RequestContext{
		Descriptor: &models.ServiceRequestDescriptor{
			Name:     "math",
			Registry: &models.ServiceRegistry{Port: 4100},
		},
		Key: &models.KeyRecord{},
	}

	_, gerr := testResolver(&fakeAwareness{host: ""}).Resolve(context.Background(), rc)
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrNoHealthyHost, gerr.Code)

	_, gerr = testResolver(&fakeAwareness{err: errors.New("consul down")}).Resolve(context.Background(), rc)
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrNoHealthyHost, gerr.Code)
}

func TestResolveEndpointPrecedence(t *testing.T) {
	svc := testResolver(&fakeAwareness{err: errors.New("never called")})

	registry := &models.ServiceRegistry{
		Port:    4100,
		SrcType: models.SrcTypeEndpoint,
		Src: &models.EndpointSource{
			URL: "http://registry-default:6000",
			URLs: []models.VersionedURL{
				{Version: "2", URL: "http://registry-v2:6002"},
			},
		},
	}

	newRC := func(version string, keyConf models.KeyConfig) *RequestContext {
		return &RequestContext{
			Descriptor: &models.ServiceRequestDescriptor{Name: "legacy", Version: version, Registry: registry},
			Key:        &models.KeyRecord{Config: keyConf},
		}
	}

	dest, gerr := svc.Resolve(context.Background(), newRC("1", nil))
	require.Nil(t, gerr)
	assert.Equal(t, "http://registry-default:6000", dest.FullURI)

	// registry version-specific URL beats the plain one
	dest, gerr = svc.Resolve(context.Background(), newRC("2", nil))
	require.Nil(t, gerr)
	assert.Equal(t, "http://registry-v2:6002", dest.FullURI)

	// tenant key URL beats both registry URLs
	keyConf := models.KeyConfig{"legacy": {URL: "http://tenant:7000"}}
	dest, gerr = svc.Resolve(context.Background(), newRC("2", keyConf))
	require.Nil(t, gerr)
	assert.Equal(t, "http://tenant:7000", dest.FullURI)

	// tenant key version-specific URL wins over everything
	keyConf = models.KeyConfig{"legacy": {
		URL: "http://tenant:7000",
		URLs: []models.VersionedURL{
			{Version: "2", URL: "http://tenant-v2:7002"},
		},
	}}
	dest, gerr = svc.Resolve(context.Background(), newRC("2", keyConf))
	require.Nil(t, gerr)
	assert.Equal(t, "http://tenant-v2:7002", dest.FullURI)
	assert.Equal(t, "http://tenant-v2:7002", dest.Address())
}

func TestResolveEndpointNoURL(t *testing.T) {
	svc := testResolver(&fakeAwareness{})
	rc := &RequestContext{
		Descriptor: &models.ServiceRequestDescriptor{
			Name:     "legacy",
			Registry: &models.ServiceRegistry{SrcType: models.SrcTypeEndpoint},
		},
		Key: &models.KeyRecord{},
	}

	_, gerr := svc.Resolve(context.Background(), rc)
	require.NotNil(t, gerr)
	assert.Equal(t, models.ErrNoHealthyHost, gerr.Code)
}

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("http://backend:7000/base", 4100)
	assert.Equal(t, "backend", host)
	assert.Equal(t, 7000, port)

	host, port = splitHostPort("http://backend/base", 4100)
	assert.Equal(t, "backend", host)
	assert.Equal(t, 4100, port)

	host, port = splitHostPort("backend:9000", 4100)
	assert.Equal(t, "backend", host)
	assert.Equal(t, 9000, port)
}
