package models

import "encoding/json"

// Tenant is the provisioning record for one multi-tenancy unit.
type Tenant struct {
	ID           string        `json:"_id"`
	Code         string        `json:"code"`
	Name         string        `json:"name,omitempty"`
	OAuth        *TenantOAuth  `json:"oauth,omitempty"`
	Applications []Application `json:"applications"`
}

// TenantOAuth mirrors the provisioning payload where disabled is 0/1.
type TenantOAuth struct {
	Secret    string `json:"secret,omitempty"`
	Disabled  int    `json:"disabled"`
	Type      int    `json:"type"`
	LoginMode string `json:"loginMode,omitempty"`
}

func (o *TenantOAuth) IsDisabled() bool {
	return o != nil && o.Disabled != 0
}

type Application struct {
	Product string   `json:"product"`
	Package string   `json:"package"`
	AppID   string   `json:"appId"`
	Keys    []AppKey `json:"keys"`
}

type AppKey struct {
	Key     string   `json:"key"`
	ExtKeys []ExtKey `json:"extKeys"`
}

// ExtKey grants a tenant application programmatic access to one
// environment. DashboardAccess marks the single key per environment
// usable for cross-environment administrative proxying.
type ExtKey struct {
	ExtKey          string `json:"extKey"`
	Env             string `json:"env"`
	DashboardAccess bool   `json:"dashboardAccess"`
	ExpDate         *int64 `json:"expDate,omitempty"`
}

// VersionedURL binds a static destination URL to one service version.
type VersionedURL struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// ServiceKeyConfig is the per-service slice of a tenant key
// configuration: optional destination overrides plus free-form
// settings merged with user-level settings at identity resolution.
type ServiceKeyConfig struct {
	URL      string                 `json:"url,omitempty"`
	URLs     []VersionedURL         `json:"urls,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

// KeyConfig maps service name to its tenant-key configuration.
type KeyConfig map[string]*ServiceKeyConfig

// Merge layers other on top of the receiver and returns a fresh map;
// scalar fields from other win, settings maps are merged recursively.
func (c KeyConfig) Merge(other KeyConfig) KeyConfig {
	out := make(KeyConfig, len(c)+len(other))
	for name, svc := range c {
		out[name] = svc
	}
	for name, over := range other {
		base, ok := out[name]
		if !ok || base == nil {
			out[name] = over
			continue
		}
		merged := &ServiceKeyConfig{
			URL:      base.URL,
			URLs:     base.URLs,
			Settings: mergeSettings(base.Settings, over.Settings),
		}
		if over.URL != "" {
			merged.URL = over.URL
		}
		if len(over.URLs) > 0 {
			merged.URLs = over.URLs
		}
		out[name] = merged
	}
	return out
}

func mergeSettings(base, over map[string]interface{}) map[string]interface{} {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]interface{}, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if bm, ok := out[k].(map[string]interface{}); ok {
			if om, ok := v.(map[string]interface{}); ok {
				out[k] = mergeSettings(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// GeoAccess is the tenant key CIDR allow/deny configuration.
type GeoAccess struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// VersionField matches one user-agent version component either exactly
// or against an inclusive min/max range. In the payload it is either a
// string or an object with min/max.
type VersionField struct {
	Exact string
	Min   string
	Max   string
}

func (f *VersionField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Exact = s
		return nil
	}
	var rng struct {
		Min string `json:"min"`
		Max string `json:"max"`
	}
	if err := json.Unmarshal(data, &rng); err != nil {
		return err
	}
	f.Min = rng.Min
	f.Max = rng.Max
	return nil
}

// OSRule restricts the operating system of the caller device.
type OSRule struct {
	Family string        `json:"family,omitempty"`
	Major  *VersionField `json:"major,omitempty"`
	Minor  *VersionField `json:"minor,omitempty"`
	Patch  *VersionField `json:"patch,omitempty"`
}

// DeviceRule restricts the browser family and version of the caller.
// Every field is optional; missing fields and "*" always match.
type DeviceRule struct {
	Family string        `json:"family,omitempty"`
	OS     *OSRule       `json:"os,omitempty"`
	Major  *VersionField `json:"major,omitempty"`
	Minor  *VersionField `json:"minor,omitempty"`
	Patch  *VersionField `json:"patch,omitempty"`
}

// DeviceAccess is the tenant key device allow/deny configuration.
type DeviceAccess struct {
	Allow []DeviceRule `json:"allow,omitempty"`
	Deny  []DeviceRule `json:"deny,omitempty"`
}

// TenantRef is the slice of the tenant carried on every request.
type TenantRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// ApplicationRef identifies the product/package a key belongs to.
type ApplicationRef struct {
	Product string `json:"product"`
	Package string `json:"package"`
}

// KeyRecord is the per-application-key configuration bundle resolved by
// the provisioning collaborator for the inbound external key. It is
// attached to the request context for the pipeline's duration only.
type KeyRecord struct {
	Tenant      TenantRef      `json:"tenant"`
	Application ApplicationRef `json:"application"`
	Key         string         `json:"key"`
	ExtKey      string         `json:"extKey"`
	Config      KeyConfig      `json:"config,omitempty"`
	Geo         *GeoAccess     `json:"geo,omitempty"`
	Device      *DeviceAccess  `json:"device,omitempty"`
	OAuth       *TenantOAuth   `json:"oauth,omitempty"`
	ACL         PackageACL     `json:"acl,omitempty"`
}

// ServiceConfig returns the tenant-key configuration for one service.
func (k *KeyRecord) ServiceConfig(name string) *ServiceKeyConfig {
	if k == nil || k.Config == nil {
		return nil
	}
	return k.Config[name]
}

// DashboardExtKey scans all applications, keys and external keys of a
// tenant for the one external key bound to env with dashboard access.
func (t *Tenant) DashboardExtKey(env string) string {
	for _, app := range t.Applications {
		for _, key := range app.Keys {
			for _, ext := range key.ExtKeys {
				if ext.Env == env && ext.DashboardAccess {
					return ext.ExtKey
				}
			}
		}
	}
	return ""
}
