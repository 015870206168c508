package service

import (
	"context"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
	"go.uber.org/zap"
)

// ACLService owns ACL resolution and the API permission decisions of
// the authorization pipeline.
type ACLService struct {
	provisioning repository.ProvisioningRepository
	logger       saiTypes.Logger
}

func NewACLService(provisioning repository.ProvisioningRepository) *ACLService {
	return &ACLService{
		provisioning: provisioning,
		logger:       sai.Logger(),
	}
}

// ResolveOverride swaps the effective ACL for an identity-level
// package override. It runs after identity resolution: an identity
// carrying its own package for the tenant's product narrows that
// package's ACL to the current service, version and method. Anonymous
// callers and identities without an override keep the ACL already in
// effect.
func (s *ACLService) ResolveOverride(ctx context.Context, rc *RequestContext) *models.GatewayError {
	if rc.Identity == nil {
		return nil
	}
	packageCode := rc.Identity.ACLOverride(rc.Key.Application.Product)
	if packageCode == "" {
		return nil
	}

	s.logger.Debug("found ACL override at identity level, overriding default ACL configuration",
		zap.String("package", packageCode))

	packACL, err := s.provisioning.GetPackageACL(ctx, packageCode)
	if err != nil || packACL == nil {
		if err != nil {
			s.logger.Error("failed to load package ACL", zap.Error(err), zap.String("package", packageCode))
		}
		return nil
	}

	svcACL := packACL[rc.Descriptor.Name]
	if svcACL == nil {
		return nil
	}
	rc.FinalACL = svcACL.
		NarrowVersion(rc.Descriptor.Version).
		NarrowMethod(rc.Descriptor.Method)
	return nil
}

// CheckService is the service-level gate: a service with no ACL data at
// all is never reachable.
func (s *ACLService) CheckService(rc *RequestContext) *models.GatewayError {
	if rc.FinalACL == nil {
		return models.GetError(models.ErrNoACLConfigured)
	}
	return nil
}

// IsAPIPublic applies the five-case public matrix:
//
//	case 0: service access=false, no api rule
//	case 1: service access=false, api access=false
//	case 2: service access=true,  regex api access=false
//	case 3: service access=false, regex api access=false
//	case 4: service access=true,  api access=false
//	case 5: apisPermission=restricted, api access=false
//
// A request carrying an explicit access_token query parameter is never
// public.
func IsAPIPublic(system *models.ServiceACL, api *models.APIRule, accessTokenParam bool) bool {
	if system == nil {
		return false
	}
	public := false
	if system.Access.Restricted() {
		if api != nil && !api.Access.Restricted() {
			public = true // cases 4 and 2
		}
	} else {
		if api == nil || !api.Access.Restricted() {
			public = true // cases 0, 1 and 3
		}
	}
	if system.APIsPermission == models.APIPermissionRestricted {
		if api != nil && !api.Access.Restricted() {
			public = true // case 5
		}
	}
	if public && accessTokenParam {
		public = false
	}
	return public
}

// CheckAPI is the final permission decision: it recomputes the
// effective API rule and decides access based on service groups, the
// caller identity and the restricted-permission mode.
func (s *ACLService) CheckAPI(rc *RequestContext) *models.GatewayError {
	system := rc.FinalACL
	api := system.FindAPI(rc.Descriptor.Path)

	if system.Access.Restricted() {
		if api != nil && !api.Access.Restricted() {
			rc.IsAPIPublic = true
		}
		if rc.Identity != nil {
			if len(system.Access.Groups) > 0 &&
				!groupsIntersect(rc.Identity.Groups(), system.Access.Groups) {
				return models.GetError(models.ErrServiceGroupDenied)
			}
		} else {
			if api == nil || api.Access.Restricted() {
				return models.GetError(models.ErrServiceIdentityRequired)
			}
		}
		return s.checkPermission(system, api, rc.Identity)
	}

	if api == nil || !api.Access.Restricted() {
		rc.IsAPIPublic = true
	}
	if api != nil || system.APIsPermission == models.APIPermissionRestricted {
		return s.checkPermission(system, api, rc.Identity)
	}
	return nil
}

// checkPermission enforces the matched API rule. Under restricted
// permission mode an unmatched API is rejected outright.
func (s *ACLService) checkPermission(system *models.ServiceACL, api *models.APIRule, identity *IdentityAdapter) *models.GatewayError {
	if system.APIsPermission == models.APIPermissionRestricted {
		if api == nil {
			return models.GetError(models.ErrAPIRestricted)
		}
		return s.checkAccess(api.Access, identity)
	}
	if api == nil {
		return nil
	}
	return s.checkAccess(api.Access, identity)
}

func (s *ACLService) checkAccess(access *models.Access, identity *IdentityAdapter) *models.GatewayError {
	if !access.Restricted() {
		return nil
	}
	if identity == nil {
		return models.GetError(models.ErrAPIIdentityRequired)
	}
	if len(access.Groups) > 0 {
		userGroups := identity.Groups()
		if len(userGroups) == 0 || !groupsIntersect(userGroups, access.Groups) {
			return models.GetError(models.ErrAPIGroupDenied)
		}
	}
	return nil
}

func groupsIntersect(userGroups, allowed []string) bool {
	for _, g := range userGroups {
		for _, a := range allowed {
			if g == a {
				return true
			}
		}
	}
	return false
}
