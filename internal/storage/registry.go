package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-service/sai"
	saiTypes "github.com/saiset-co/sai-service/types"
)

// RegistryClient loads environment registries from the registry service.
type RegistryClient struct {
	client saiTypes.ClientManager
}

func NewRegistryClient() repository.RegistryRepository {
	return &RegistryClient{
		client: sai.ClientManager(),
	}
}

func (r *RegistryClient) LoadByEnvironment(ctx context.Context, envCode string) (*models.Registry, error) {
	reqData := map[string]interface{}{
		"env": strings.ToUpper(envCode),
	}

	response, statusCode, err := r.client.Call("registry", "GET", "/api/v1/registry", reqData, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != 200 {
		return nil, fmt.Errorf("registry request failed with status %d", statusCode)
	}

	var result struct {
		Data []models.Registry `json:"data"`
	}

	if err := json.Unmarshal(response, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("registry not found for environment %s", envCode)
	}

	return &result.Data[0], nil
}
