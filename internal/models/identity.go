package models

// UserRecord is the user payload as stored by the identity service.
type UserRecord struct {
	ID           string                 `json:"_id,omitempty"`
	Username     string                 `json:"username,omitempty"`
	FirstName    string                 `json:"firstName,omitempty"`
	LastName     string                 `json:"lastName,omitempty"`
	Email        string                 `json:"email,omitempty"`
	Groups       []string               `json:"groups,omitempty"`
	Profile      map[string]interface{} `json:"profile,omitempty"`
	Tenant       *UserTenant            `json:"tenant,omitempty"`
	SocialLogin  *SocialLogin           `json:"socialLogin,omitempty"`
	Config       *UserConfig            `json:"config,omitempty"`
	GroupsConfig *GroupsConfig          `json:"groupsConfig,omitempty"`

	// Set on the userId-bearing record shape instead of Username/ID.
	UserID string `json:"userId,omitempty"`
	TID    string `json:"tId,omitempty"`
}

type UserTenant struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

type SocialLogin struct {
	Strategy    string `json:"strategy"`
	ID          string `json:"id"`
	AccessToken string `json:"accessToken,omitempty"`
}

// UserConfig carries the user-level per-key service configuration.
type UserConfig struct {
	Keys map[string]*UserKeyEntry `json:"keys,omitempty"`
}

type UserKeyEntry struct {
	Config KeyConfig `json:"config,omitempty"`
}

// GroupsConfig lists the ACL packages the user's groups allow, keyed
// by product code.
type GroupsConfig struct {
	AllowedPackages map[string][]string `json:"allowedPackages,omitempty"`
}

// TokenUser is the user block of a verified bearer token. With login
// mode "oauth" (or when the verifier inlines records) Record holds
// the full user payload and no identity-service fetch is needed.
type TokenUser struct {
	ID        string      `json:"id"`
	Username  string      `json:"username,omitempty"`
	LoginMode string      `json:"loginMode,omitempty"`
	Record    *UserRecord `json:"record,omitempty"`
}

// BearerToken is the decision payload returned by the oauth verifier.
// Type 0 tokens carry the resolved user record directly.
type BearerToken struct {
	Type     int         `json:"type"`
	ClientID string      `json:"clientId"`
	Env      string      `json:"env"`
	User     *TokenUser  `json:"user,omitempty"`
	Record   *UserRecord `json:"record,omitempty"`
}

// Profile is the caller-facing user view. Exactly one of the three
// source shapes populates it: username-bearing records fill the full
// shape, userId-bearing records the tenant-reference shape, and raw
// records keep their payload under Profile.
type Profile struct {
	ID          string                 `json:"_id"`
	Username    string                 `json:"username"`
	FirstName   string                 `json:"firstName,omitempty"`
	LastName    string                 `json:"lastName,omitempty"`
	Email       string                 `json:"email,omitempty"`
	Groups      []string               `json:"groups,omitempty"`
	Profile     map[string]interface{} `json:"profile,omitempty"`
	Tenant      *UserTenant            `json:"tenant,omitempty"`
	SocialLogin *SocialLogin           `json:"socialLogin,omitempty"`
	Config      *UserConfig            `json:"config,omitempty"`
}
