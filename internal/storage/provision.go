package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
)

// ProvisionClient serves tenant, key and package records from the
// external provisioning service.
type ProvisionClient struct {
	client saiTypes.ClientManager
}

func NewProvisionClient() repository.ProvisioningRepository {
	return &ProvisionClient{
		client: sai.ClientManager(),
	}
}

func (r *ProvisionClient) GetExtKeyData(ctx context.Context, extKey, envCode string) (*models.KeyRecord, error) {
	reqData := map[string]interface{}{
		"extKey": extKey,
		"env":    envCode,
	}

	response, statusCode, err := r.client.Call("provision", "GET", "/api/v1/keys", reqData, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != 200 {
		return nil, fmt.Errorf("provision request failed with status %d", statusCode)
	}

	var result struct {
		Data []models.KeyRecord `json:"data"`
	}

	if err := json.Unmarshal(response, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("external key not found")
	}

	key := &result.Data[0]
	key.ACL = compileACL(key.ACL)
	return key, nil
}

func (r *ProvisionClient) GetTenantByCode(ctx context.Context, code string) (*models.Tenant, error) {
	return r.getTenant(map[string]interface{}{"code": code})
}

func (r *ProvisionClient) GetTenantData(ctx context.Context, clientID string) (*models.Tenant, error) {
	return r.getTenant(map[string]interface{}{"id": clientID})
}

func (r *ProvisionClient) getTenant(filter map[string]interface{}) (*models.Tenant, error) {
	response, statusCode, err := r.client.Call("provision", "GET", "/api/v1/tenants", filter, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != 200 {
		return nil, fmt.Errorf("provision request failed with status %d", statusCode)
	}

	var result struct {
		Data []models.Tenant `json:"data"`
	}

	if err := json.Unmarshal(response, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("tenant not found")
	}

	return &result.Data[0], nil
}

func (r *ProvisionClient) GetPackageACL(ctx context.Context, packageCode string) (models.PackageACL, error) {
	reqData := map[string]interface{}{
		"code": packageCode,
	}

	response, statusCode, err := r.client.Call("provision", "GET", "/api/v1/packages", reqData, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != 200 {
		return nil, fmt.Errorf("provision request failed with status %d", statusCode)
	}

	var result struct {
		Data []struct {
			ACL models.PackageACL `json:"acl"`
		} `json:"data"`
	}

	if err := json.Unmarshal(response, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("package not found")
	}

	return compileACL(result.Data[0].ACL), nil
}

// compileACL compiles regex entries once at load so request-time
// matching never recompiles patterns.
func compileACL(acl models.PackageACL) models.PackageACL {
	if acl == nil {
		return nil
	}
	out := make(models.PackageACL, len(acl))
	for name, svc := range acl {
		out[name] = svc.Compile()
	}
	return out
}
