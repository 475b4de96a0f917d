package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

// VendRequest is what goes upstream through a selected SIM resource.
type VendRequest struct {
	Kind           domain.TransactionKind `json:"kind"`
	Network        domain.Network         `json:"network,omitempty"`
	Recipient      string                 `json:"recipient,omitempty"`
	Amount         decimal.Decimal        `json:"amount"`
	ExternalPlanID string                 `json:"external_plan_id,omitempty"`
	ResourcePhone  string                 `json:"resource_phone"`
	Reference      string                 `json:"reference"`
	Payload        domain.Metadata        `json:"payload,omitempty"`
}

// VendResult carries the provider receipt plus any generated artifacts
// (education pins, SMS batch serials).
type VendResult struct {
	ProviderRef string          `json:"provider_ref"`
	Artifacts   domain.Metadata `json:"artifacts,omitempty"`
}

// Client is the upstream provider. Calls block for a network round trip; the
// dispatcher bounds them with a context deadline and treats timeout as
// failure, never as success.
type Client interface {
	Vend(ctx context.Context, req *VendRequest) (*VendResult, error)
}

// HTTPClient talks to the aggregator's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (c *HTTPClient) Vend(ctx context.Context, req *VendRequest) (*VendResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vend", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamFailure, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Provider rejected vend", map[string]interface{}{
			"status":    resp.StatusCode,
			"reference": req.Reference,
		})
		return nil, errors.Wrap(errors.ErrUpstreamFailure, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}

	var result VendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamFailure, "malformed provider response")
	}
	return &result, nil
}
