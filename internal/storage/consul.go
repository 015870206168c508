package storage

import (
	"context"
	"math/rand"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-gateway/types"
)

// ConsulAwareness answers healthy-host lookups from the Consul health
// catalog. Versions map onto service tags ("v1", "v2.1").
type ConsulAwareness struct {
	client *consulapi.Client
}

func NewConsulAwareness(cfg types.ConsulConfig) (repository.Awareness, error) {
	conf := consulapi.DefaultConfig()
	if cfg.Addr != "" {
		conf.Address = cfg.Addr
	}
	if cfg.Datacenter != "" {
		conf.Datacenter = cfg.Datacenter
	}

	client, err := consulapi.NewClient(conf)
	if err != nil {
		return nil, errors.Wrap(err, "consul client")
	}

	return &ConsulAwareness{client: client}, nil
}

func (a *ConsulAwareness) GetHealthyHost(ctx context.Context, service, version string) (string, error) {
	tag := ""
	if version != "" {
		tag = "v" + version
	}

	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := a.client.Health().Service(service, tag, true, opts)
	if err != nil {
		return "", errors.Wrapf(err, "consul health lookup for %s", service)
	}
	if len(entries) == 0 {
		return "", nil
	}

	entry := entries[rand.Intn(len(entries))]
	host := entry.Service.Address
	if host == "" {
		host = entry.Node.Address
	}
	return host, nil
}
