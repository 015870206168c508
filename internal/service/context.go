package service

import "github.com/saiset-co/sai-gateway/internal/models"

// RequestContext is the evolving per-request authorization context
// passed through the pipeline stages. Each stage either advances it or
// aborts the chain with a gateway error.
type RequestContext struct {
	Descriptor *models.ServiceRequestDescriptor
	Key        *models.KeyRecord

	// Effective ACL for this request; starts as the descriptor ACL and
	// may be replaced by a narrowed package-override view in stage one.
	FinalACL *models.ServiceACL

	// Verified bearer token claims, set by the oauth stage.
	Token *models.BearerToken

	// Identity adapter, set by the identity stage when a token is
	// present. Nil identity is a valid pipeline outcome.
	Identity *IdentityAdapter

	// Tenant-key service configuration, deep-merged with the user
	// configuration once an identity resolves.
	ServicesConfig models.KeyConfig

	Roaming *models.Roaming

	// Marked by the final permission stage for downstream consumers.
	IsAPIPublic bool

	ClientIP    string
	UserAgent   string
	AccessToken string
	// True when the caller passed an explicit access_token query
	// parameter; such requests are never treated as public.
	AccessTokenParam bool
}
