package models

import "time"

// ServiceRequestDescriptor is the immutable per-request routing value:
// created once at routing time, read-only for the rest of the pipeline.
type ServiceRequestDescriptor struct {
	Name     string
	Version  string
	Path     string
	Method   string
	Registry *ServiceRegistry
	Key      *KeyRecord
	// ACL attached at routing time; stages may derive narrower views
	// from it but never replace it on the descriptor.
	FinalACL *ServiceACL
}

// RemoteEnvironmentTarget is the resolved cross-environment
// destination, computed once per cross-environment request.
type RemoteEnvironmentTarget struct {
	Protocol string
	Domain   string
	Port     int
	URI      string
	ExtKey   string
	Timeout  time.Duration
}

// Roaming is the tenant context attached when a dashboard-scoped token
// addresses a different client/environment than the caller's.
type Roaming struct {
	TID          string                 `json:"tId"`
	User         string                 `json:"user,omitempty"`
	Code         string                 `json:"code"`
	TenantMetaDB map[string]interface{} `json:"tenantMetaDB,omitempty"`
}
