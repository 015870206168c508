package service

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
	"go.uber.org/zap"
)

// Destination is a resolved backend address with the timeout values the
// proxy applies to the call.
type Destination struct {
	Host string
	Port int

	// FullURI is set when the destination came from a configured
	// endpoint URL rather than service discovery; it takes precedence
	// over Host and Port.
	FullURI string

	RequestTimeout        int
	RequestTimeoutRenewal int
}

// ResolverService picks the backend host for a service request, either
// from configured endpoint URLs or from the awareness layer.
type ResolverService struct {
	cfg       *types.SaiGatewayConfig
	awareness repository.Awareness
	logger    saiTypes.Logger
}

func NewResolverService(cfg *types.SaiGatewayConfig, awareness repository.Awareness) *ResolverService {
	return &ResolverService{
		cfg:       cfg,
		awareness: awareness,
		logger:    sai.Logger(),
	}
}

// Resolve builds the destination for a descriptor. Endpoint-type
// services resolve from configured URLs, with tenant key overrides
// taking precedence over registry values and version-specific URLs over
// plain ones. Everything else asks the awareness layer for a healthy
// host.
func (s *ResolverService) Resolve(ctx context.Context, rc *RequestContext) (*Destination, *models.GatewayError) {
	reg := rc.Descriptor.Registry
	if reg == nil {
		return nil, models.GetError(models.ErrConfigurationMissing)
	}

	dest := &Destination{
		Port:                  reg.Port,
		RequestTimeout:        s.cfg.RequestTimeout,
		RequestTimeoutRenewal: s.cfg.RequestTimeoutRenewal,
	}
	if reg.RequestTimeout > 0 {
		dest.RequestTimeout = reg.RequestTimeout
	}
	if reg.RequestTimeoutRenewal > 0 {
		dest.RequestTimeoutRenewal = reg.RequestTimeoutRenewal
	}

	if reg.SrcType == models.SrcTypeEndpoint {
		uri := s.endpointURI(rc, reg)
		if uri == "" {
			return nil, models.GetError(models.ErrNoHealthyHost)
		}
		dest.FullURI = uri
		dest.Host, dest.Port = splitHostPort(uri, reg.Port)
		return dest, nil
	}

	host, err := s.awareness.GetHealthyHost(ctx, rc.Descriptor.Name, rc.Descriptor.Version)
	if err != nil {
		s.logger.Error("awareness lookup failed",
			zap.String("service", rc.Descriptor.Name),
			zap.String("version", rc.Descriptor.Version),
			zap.Error(err))
		return nil, models.GetError(models.ErrNoHealthyHost)
	}
	if host == "" {
		return nil, models.GetError(models.ErrNoHealthyHost)
	}
	dest.Host = host
	return dest, nil
}

// endpointURI applies the override chain for endpoint services. Later
// sources win: registry URL, registry per-version URL, tenant key URL,
// tenant key per-version URL.
func (s *ResolverService) endpointURI(rc *RequestContext, reg *models.ServiceRegistry) string {
	version := rc.Descriptor.Version
	uri := ""

	if reg.Src != nil {
		if reg.Src.URL != "" {
			uri = reg.Src.URL
		}
		for _, v := range reg.Src.URLs {
			if v.Version == version && v.URL != "" {
				uri = v.URL
			}
		}
	}

	if svcConf := rc.Key.ServiceConfig(rc.Descriptor.Name); svcConf != nil {
		if svcConf.URL != "" {
			uri = svcConf.URL
		}
		for _, v := range svcConf.URLs {
			if v.Version == version && v.URL != "" {
				uri = v.URL
			}
		}
	}

	return uri
}

// splitHostPort extracts host and port from an endpoint URI, keeping
// the fallback port when the URI carries none.
func splitHostPort(uri string, fallbackPort int) (string, int) {
	rest := uri
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?"); idx >= 0 {
		rest = rest[:idx]
	}
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return rest, fallbackPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, fallbackPort
	}
	return host, port
}

// Address renders the dialable backend address for a destination.
func (d *Destination) Address() string {
	if d.FullURI != "" {
		return d.FullURI
	}
	return fmt.Sprintf("http://%s:%d", d.Host, d.Port)
}
