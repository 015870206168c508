package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/saiset-co/sai-gateway/internal/models"
	"github.com/saiset-co/sai-gateway/internal/repository"
	"github.com/saiset-co/sai-service/sai"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// OAuthClient verifies bearer tokens against the external oauth
// service over HTTP.
type OAuthClient struct {
	verifyURL string
	timeout   time.Duration
}

func NewOAuthClient(baseURL string) repository.OAuthVerifier {
	return &OAuthClient{
		verifyURL: baseURL + "/api/v1/token/verify",
		timeout:   30 * time.Second,
	}
}

func (p *OAuthClient) Verify(ctx context.Context, accessToken string) (*models.BearerToken, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	reqBody, _ := json.Marshal(map[string]interface{}{
		"token": accessToken,
	})
	req.SetRequestURI(p.verifyURL)
	req.Header.SetMethod("POST")
	req.Header.SetContentType("application/json")
	req.SetBody(reqBody)

	err := fasthttp.DoTimeout(req, resp, p.timeout)
	if err != nil {
		sai.Logger().Error("OAuthClient: verification request failed", zap.Error(err))
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, errors.Errorf("oauth verification failed with status %d", resp.StatusCode())
	}

	var result struct {
		Valid bool               `json:"valid"`
		Token models.BearerToken `json:"token"`
	}

	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}

	if !result.Valid {
		return nil, errors.New("token rejected by the oauth service")
	}

	return &result.Token, nil
}
