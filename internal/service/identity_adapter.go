package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
)

// ErrNoIdentityAvailable reports that the adapter's source carries
// neither a resolved record nor a user id to fetch one with.
var ErrNoIdentityAvailable = errors.New("no user id available to resolve an identity")

type identitySource int

const (
	sourceTokenRecord identitySource = iota // pre-resolved token user object
	sourceLookup                            // token with a user id, record fetched on demand
	sourceRaw                               // pre-supplied raw identity record
)

// IdentityAdapter normalizes the three possible identity sources into
// one view. The source shape is fixed at construction and preserved in
// the profile output.
type IdentityAdapter struct {
	source   identitySource
	record   *models.UserRecord
	raw      map[string]interface{}
	id       string
	username string

	identity repository.IdentityRepository
}

// NewTokenRecordAdapter wraps a token that already carries the full
// user record.
func NewTokenRecordAdapter(record *models.UserRecord) *IdentityAdapter {
	return &IdentityAdapter{
		source: sourceTokenRecord,
		record: record,
	}
}

// NewTokenUserAdapter wraps a token carrying only a user id; the record
// is fetched from the identity service on Resolve.
func NewTokenUserAdapter(id, username string, identity repository.IdentityRepository) *IdentityAdapter {
	return &IdentityAdapter{
		source:   sourceLookup,
		id:       id,
		username: username,
		identity: identity,
	}
}

// NewRawAdapter wraps a pre-supplied raw identity payload.
func NewRawAdapter(raw map[string]interface{}) *IdentityAdapter {
	return &IdentityAdapter{
		source: sourceRaw,
		raw:    raw,
	}
}

// AdapterFromToken picks the construction shape for a verified bearer
// token. Type 0 tokens are themselves the user record; user blocks with
// login mode "oauth" (or when the verifier is configured to inline
// records) carry the record; anything else needs an identity fetch.
func AdapterFromToken(token *models.BearerToken, getUserFromToken bool, identity repository.IdentityRepository) *IdentityAdapter {
	if token.Type == 0 && token.Record != nil {
		return NewTokenRecordAdapter(token.Record)
	}
	if token.User != nil {
		if token.User.Record != nil && (token.User.LoginMode == "oauth" || getUserFromToken) {
			return NewTokenRecordAdapter(token.User.Record)
		}
		return NewTokenUserAdapter(token.User.ID, token.User.Username, identity)
	}
	if token.Record != nil {
		return NewTokenRecordAdapter(token.Record)
	}
	return &IdentityAdapter{source: sourceLookup}
}

// Resolve makes sure a user record is available, fetching it from the
// identity service for lookup-shaped sources.
func (a *IdentityAdapter) Resolve(ctx context.Context) (*models.UserRecord, error) {
	if a.record != nil {
		return a.record, nil
	}
	if a.source == sourceRaw {
		return nil, nil
	}
	if a.id == "" {
		return nil, ErrNoIdentityAvailable
	}

	record, err := a.identity.GetUserRecord(ctx, a.id, a.username)
	if err != nil {
		return nil, err
	}
	a.record = record
	return record, nil
}

// Profile returns the normalized caller-facing view. The output shape
// follows the source record shape: username-bearing, userId-bearing or
// raw. Private fields (social access token, user config) are only
// included when requested.
func (a *IdentityAdapter) Profile(includePrivate bool) *models.Profile {
	if a.source == sourceRaw {
		return a.rawProfile()
	}
	if a.record == nil {
		return nil
	}

	switch {
	case a.record.Username != "":
		p := &models.Profile{
			ID:        a.record.ID,
			Username:  a.record.Username,
			FirstName: a.record.FirstName,
			LastName:  a.record.LastName,
			Email:     a.record.Email,
			Groups:    a.record.Groups,
			Profile:   a.record.Profile,
			Tenant:    a.record.Tenant,
		}
		if a.record.SocialLogin != nil {
			p.SocialLogin = &models.SocialLogin{
				Strategy: a.record.SocialLogin.Strategy,
				ID:       a.record.SocialLogin.ID,
			}
		}
		if includePrivate {
			if a.record.SocialLogin != nil {
				p.SocialLogin.AccessToken = a.record.SocialLogin.AccessToken
			}
			p.Config = a.record.Config
		}
		return p

	case a.record.UserID != "":
		return &models.Profile{
			ID:       a.record.ID,
			Username: a.record.UserID,
			Tenant:   &models.UserTenant{ID: a.record.TID},
		}

	default:
		return &models.Profile{
			ID:       a.record.ID,
			Username: a.record.Username,
			Tenant:   &models.UserTenant{},
			Profile:  a.record.Profile,
		}
	}
}

func (a *IdentityAdapter) rawProfile() *models.Profile {
	if a.raw == nil {
		return nil
	}
	id, _ := a.raw["id"].(string)
	user, _ := a.raw["user"].(string)
	if id == "" {
		id = user
	}
	return &models.Profile{
		ID:       id,
		Username: user,
		Tenant:   &models.UserTenant{},
		Profile:  a.raw,
	}
}

// ACLOverride returns the package code the identity's groups allow for
// the tenant's product, or empty when the identity has no override.
func (a *IdentityAdapter) ACLOverride(productCode string) string {
	if a.record == nil || a.record.GroupsConfig == nil {
		return ""
	}
	packages := a.record.GroupsConfig.AllowedPackages[productCode]
	if len(packages) == 0 {
		return ""
	}
	// one package per product is supported
	return packages[0]
}

// MergedServiceConfig returns the user-level service configuration for
// the given tenant key, or nil when the record carries none.
func (a *IdentityAdapter) MergedServiceConfig(key string) models.KeyConfig {
	if a.record == nil || a.record.Config == nil {
		return nil
	}
	entry := a.record.Config.Keys[key]
	if entry == nil {
		return nil
	}
	return entry.Config
}

// Groups returns the identity's group memberships.
func (a *IdentityAdapter) Groups() []string {
	if a.record == nil {
		return nil
	}
	return a.record.Groups
}
