package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessUnmarshal(t *testing.T) {
	var a Access
	require.NoError(t, json.Unmarshal([]byte(`true`), &a))
	assert.True(t, a.Required)
	assert.Empty(t, a.Groups)

	require.NoError(t, json.Unmarshal([]byte(`false`), &a))
	assert.False(t, a.Required)

	require.NoError(t, json.Unmarshal([]byte(`["gold","silver"]`), &a))
	assert.True(t, a.Required)
	assert.Equal(t, []string{"gold", "silver"}, a.Groups)

	assert.Error(t, json.Unmarshal([]byte(`42`), &a))
}

func TestAccessRestricted(t *testing.T) {
	var nilAccess *Access
	assert.False(t, nilAccess.Restricted())
	assert.False(t, (&Access{Required: false}).Restricted())
	assert.True(t, (&Access{Required: true}).Restricted())
	assert.True(t, (&Access{Required: true, Groups: []string{"gold"}}).Restricted())
}

func TestSanitizeVersion(t *testing.T) {
	assert.Equal(t, "1", SanitizeVersion("1"))
	assert.Equal(t, "2x1", SanitizeVersion("2.1"))
	assert.Equal(t, "", SanitizeVersion(""))
}

func TestNarrowVersion(t *testing.T) {
	v1 := &ServiceACL{APIsPermission: APIPermissionRestricted}
	acl := &ServiceACL{
		Versions: map[string]*ServiceACL{"2x1": v1},
	}

	assert.Same(t, v1, acl.NarrowVersion("2.1"))
	assert.Same(t, acl, acl.NarrowVersion("3"))
	assert.Same(t, acl, acl.NarrowVersion(""))

	var nilACL *ServiceACL
	assert.Nil(t, nilACL.NarrowVersion("1"))
}

func TestNarrowMethod(t *testing.T) {
	acl := &ServiceACL{
		Access:         &Access{Required: true},
		APIsPermission: APIPermissionRestricted,
		APIs:           map[string]*APIRule{"/all": {}},
		Methods: map[string]*MethodACL{
			"get": {APIs: map[string]*APIRule{"/read": {}}},
			"post": {
				APIs:           map[string]*APIRule{"/write": {}},
				APIsPermission: "open",
			},
		},
	}

	get := acl.NarrowMethod("GET")
	require.NotNil(t, get)
	assert.NotNil(t, get.FindAPI("/read"))
	assert.Nil(t, get.FindAPI("/all"))
	assert.True(t, get.Access.Restricted())
	// method block inherits the service-wide permission mode
	assert.Equal(t, APIPermissionRestricted, get.APIsPermission)

	post := acl.NarrowMethod("POST")
	require.NotNil(t, post)
	assert.Equal(t, "open", post.APIsPermission)

	// no method block keeps the service-wide view
	assert.Same(t, acl, acl.NarrowMethod("DELETE"))
}

func TestCompilePathParams(t *testing.T) {
	acl := &ServiceACL{
		APIs: map[string]*APIRule{
			"/item/:id":     {Access: &Access{Required: true}},
			"/item/:id/tag": {},
			"/static":       {},
		},
	}

	compiled := acl.Compile()
	require.NotNil(t, compiled)

	assert.NotNil(t, compiled.FindAPI("/static"))

	byID := compiled.FindAPI("/item/42")
	require.NotNil(t, byID)
	assert.True(t, byID.Access.Restricted())

	assert.NotNil(t, compiled.FindAPI("/item/42/tag"))
	assert.Nil(t, compiled.FindAPI("/item/42/other"))
	assert.Nil(t, compiled.FindAPI("/item/42/tag/deep"))

	// the receiver is untouched
	assert.Nil(t, acl.APIsRegExp)
}

func TestFindAPILastRegexWins(t *testing.T) {
	acl := (&ServiceACL{
		APIsRegExp: []*RegexAPIRule{
			{Pattern: "^/v/.*$", Access: &Access{Required: false}},
			{Pattern: "^/v/secret$", Access: &Access{Required: true}},
		},
	}).Compile()

	open := acl.FindAPI("/v/public")
	require.NotNil(t, open)
	assert.False(t, open.Access.Restricted())

	secret := acl.FindAPI("/v/secret")
	require.NotNil(t, secret)
	assert.True(t, secret.Access.Restricted())
}

func TestFindAPIExactBeatsRegex(t *testing.T) {
	acl := (&ServiceACL{
		APIs: map[string]*APIRule{"/exact": {Access: &Access{Required: true}}},
		APIsRegExp: []*RegexAPIRule{
			{Pattern: "^/exact$", Access: &Access{Required: false}},
		},
	}).Compile()

	rule := acl.FindAPI("/exact")
	require.NotNil(t, rule)
	assert.True(t, rule.Access.Restricted())
}
