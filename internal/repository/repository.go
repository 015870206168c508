package repository

import (
	"context"
	"time"

	"github.com/saiset-co/sai-gateway/internal/models"
)

// Awareness is the service-instance discovery collaborator: it answers
// with a healthy host for a logical service name and version, or an
// empty string when none exists.
type Awareness interface {
	GetHealthyHost(ctx context.Context, service, version string) (string, error)
}

// RegistryRepository loads the per-environment registry records.
type RegistryRepository interface {
	LoadByEnvironment(ctx context.Context, envCode string) (*models.Registry, error)
}

// ProvisioningRepository serves tenant, key and package records.
type ProvisioningRepository interface {
	GetExtKeyData(ctx context.Context, extKey, envCode string) (*models.KeyRecord, error)
	GetTenantByCode(ctx context.Context, code string) (*models.Tenant, error)
	GetTenantData(ctx context.Context, clientID string) (*models.Tenant, error)
	GetPackageACL(ctx context.Context, packageCode string) (models.PackageACL, error)
}

// OAuthVerifier validates the bearer token of a request with the
// external oauth service and returns its decoded claims.
type OAuthVerifier interface {
	Verify(ctx context.Context, accessToken string) (*models.BearerToken, error)
}

// IdentityRepository fetches user records from the identity service.
type IdentityRepository interface {
	GetUserRecord(ctx context.Context, id, username string) (*models.UserRecord, error)
}

// RateLimiter enforces the per-tenant throttling window.
type RateLimiter interface {
	CheckRate(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Repositories bundles the collaborators the pipeline consumes.
type Repositories struct {
	Awareness    Awareness
	Registry     RegistryRepository
	Provisioning ProvisioningRepository
	OAuth        OAuthVerifier
	Identity     IdentityRepository
	RateLimiter  RateLimiter
}
