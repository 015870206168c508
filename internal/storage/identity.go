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

// IdentityClient fetches user records from the identity service for
// tokens that only carry a user id.
type IdentityClient struct {
	client saiTypes.ClientManager
}

func NewIdentityClient() repository.IdentityRepository {
	return &IdentityClient{
		client: sai.ClientManager(),
	}
}

func (r *IdentityClient) GetUserRecord(ctx context.Context, id, username string) (*models.UserRecord, error) {
	reqData := map[string]interface{}{
		"id":       id,
		"username": username,
	}

	response, statusCode, err := r.client.Call("urac", "GET", "/api/v1/user", reqData, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != 200 {
		return nil, fmt.Errorf("urac request failed with status %d", statusCode)
	}

	var result struct {
		Data []models.UserRecord `json:"data"`
	}

	if err := json.Unmarshal(response, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("user record not found")
	}

	return &result.Data[0], nil
}
