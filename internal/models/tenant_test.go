package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyConfigMerge(t *testing.T) {
	base := KeyConfig{
		"math": {
			URL: "http://base:4100",
			Settings: map[string]interface{}{
				"mode":  "fast",
				"limit": float64(10),
				"nested": map[string]interface{}{
					"keep": true,
					"swap": "old",
				},
			},
		},
		"untouched": {URL: "http://same"},
	}
	over := KeyConfig{
		"math": {
			Settings: map[string]interface{}{
				"mode": "safe",
				"nested": map[string]interface{}{
					"swap": "new",
				},
			},
		},
		"extra": {URL: "http://extra"},
	}

	merged := base.Merge(over)

	math := merged["math"]
	require.NotNil(t, math)
	// scalar kept from base when the override leaves it empty
	assert.Equal(t, "http://base:4100", math.URL)
	assert.Equal(t, "safe", math.Settings["mode"])
	assert.Equal(t, float64(10), math.Settings["limit"])

	nested := math.Settings["nested"].(map[string]interface{})
	assert.Equal(t, true, nested["keep"])
	assert.Equal(t, "new", nested["swap"])

	assert.Equal(t, "http://same", merged["untouched"].URL)
	assert.Equal(t, "http://extra", merged["extra"].URL)

	// base map is never mutated
	assert.Equal(t, "fast", base["math"].Settings["mode"])
}

func TestKeyConfigMergeURLOverride(t *testing.T) {
	base := KeyConfig{"svc": {URL: "http://old"}}
	over := KeyConfig{"svc": {URL: "http://new"}}

	assert.Equal(t, "http://new", base.Merge(over)["svc"].URL)
}

func TestKeyConfigMergeNilReceiver(t *testing.T) {
	var base KeyConfig
	merged := base.Merge(KeyConfig{"svc": {URL: "http://only"}})
	assert.Equal(t, "http://only", merged["svc"].URL)
}

func TestVersionFieldUnmarshal(t *testing.T) {
	var f VersionField
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &f))
	assert.Equal(t, "12", f.Exact)

	var r VersionField
	require.NoError(t, json.Unmarshal([]byte(`{"min":"10","max":"14"}`), &r))
	assert.Empty(t, r.Exact)
	assert.Equal(t, "10", r.Min)
	assert.Equal(t, "14", r.Max)
}

func TestDeviceRuleUnmarshal(t *testing.T) {
	payload := `{"family":"chrome","major":"100","minor":{"min":"1","max":"5"},"os":{"family":"linux"}}`
	var rule DeviceRule
	require.NoError(t, json.Unmarshal([]byte(payload), &rule))
	assert.Equal(t, "chrome", rule.Family)
	assert.Equal(t, "100", rule.Major.Exact)
	assert.Equal(t, "1", rule.Minor.Min)
	assert.Equal(t, "5", rule.Minor.Max)
	require.NotNil(t, rule.OS)
	assert.Equal(t, "linux", rule.OS.Family)
}

func TestTenantOAuthIsDisabled(t *testing.T) {
	var o *TenantOAuth
	assert.False(t, o.IsDisabled())
	assert.False(t, (&TenantOAuth{Disabled: 0}).IsDisabled())
	assert.True(t, (&TenantOAuth{Disabled: 1}).IsDisabled())
}

func TestDashboardExtKey(t *testing.T) {
	tenant := &Tenant{
		Applications: []Application{
			{
				Keys: []AppKey{
					{ExtKeys: []ExtKey{
						{ExtKey: "plain", Env: "stg", DashboardAccess: false},
						{ExtKey: "admin-stg", Env: "stg", DashboardAccess: true},
					}},
				},
			},
			{
				Keys: []AppKey{
					{ExtKeys: []ExtKey{
						{ExtKey: "admin-prod", Env: "prod", DashboardAccess: true},
					}},
				},
			},
		},
	}

	assert.Equal(t, "admin-stg", tenant.DashboardExtKey("stg"))
	assert.Equal(t, "admin-prod", tenant.DashboardExtKey("prod"))
	assert.Equal(t, "", tenant.DashboardExtKey("dev"))
}
