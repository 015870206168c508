package models

// Registry is the per-environment registry record consumed by the
// pipeline: gateway address data for cross-environment proxying plus
// the registry excerpts of the services it fronts.
type Registry struct {
	Environment  string                    `json:"environment"`
	Protocol     string                    `json:"protocol"`
	Domain       string                    `json:"domain"`
	Port         int                       `json:"port"`
	APIPrefix    string                    `json:"apiPrefix,omitempty"`
	TenantMetaDB map[string]interface{}    `json:"tenantMetaDB,omitempty"`
	Services     map[string]*ServiceRegistry `json:"services,omitempty"`
}

// ServiceRegistry is the registry excerpt for one service.
type ServiceRegistry struct {
	Port                  int                `json:"port"`
	RequestTimeout        int                `json:"requestTimeout,omitempty"`
	RequestTimeoutRenewal int                `json:"requestTimeoutRenewal,omitempty"`
	SrcType               string             `json:"srcType,omitempty"`
	Src                   *EndpointSource    `json:"src,omitempty"`
	Maintenance           *MaintenanceConfig `json:"maintenance,omitempty"`
}

// SrcTypeEndpoint marks a statically addressed service: the destination
// is a configured URL rather than a discovered host.
const SrcTypeEndpoint = "endpoint"

// EndpointSource is the static address block of an endpoint service.
type EndpointSource struct {
	URL  string         `json:"url"`
	URLs []VersionedURL `json:"urls,omitempty"`
}

// MaintenanceConfig describes how to reach the heartbeat endpoint of a
// service instance.
type MaintenanceConfig struct {
	Readiness string           `json:"readiness,omitempty"`
	Port      *MaintenancePort `json:"port,omitempty"`
}

// MaintenancePort selects the heartbeat port: the default offset from
// the service port, the service port itself, or a pinned value.
type MaintenancePort struct {
	Type  string `json:"type"`
	Value int    `json:"value,omitempty"`
}

const (
	MaintenancePortOffset  = "maintenance"
	MaintenancePortInherit = "inherit"
)
