// Package crmclient is a plain HTTP JSON client for the lead directory the
// processor consults for each prospect's current contact data. It carries
// no retry or circuit-breaker logic itself — the resilience envelope is
// composed at the call site in internal/service/followup, mirroring how
// the teacher keeps its ESP clients free of retry logic.
package crmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

var _ followup.CRMClient = (*Client)(nil)

// Client talks to the CRM's prospect lookup endpoint.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	retryable  resilience.DependencyConfig
}

// NewClient creates a CRM client. baseURL is the CRM's API root (no
// trailing slash); secret is sent as a bearer token.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retryable:  resilience.CRMDependencyConfig(),
	}
}

type prospectResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PartnerName string `json:"partner_name"`
	Website     string `json:"website"`
	Function    string `json:"function"`
	Description string `json:"description"`
}

// LookupProspect resolves the prospect's current record by x_external_id.
func (c *Client) LookupProspect(ctx context.Context, externalID string) (*followup.ProspectRecord, error) {
	url := fmt.Sprintf("%s/prospects/%s", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building CRM request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, &followup.ExternalServiceError{Service: "crm", Err: err, Duration: duration.String(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &followup.ExternalServiceError{Service: "crm", StatusCode: resp.StatusCode, Err: err, Duration: duration.String()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &followup.ExternalServiceError{
			Service:    "crm",
			StatusCode: resp.StatusCode,
			Duration:   duration.String(),
			Err:        fmt.Errorf("crm returned %d: %s", resp.StatusCode, string(body)),
			Retryable:  c.retryable.IsRetryableStatus(resp.StatusCode),
		}
	}

	var parsed prospectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &followup.ExternalServiceError{Service: "crm", StatusCode: resp.StatusCode, Duration: duration.String(), Err: fmt.Errorf("decoding crm response: %w", err)}
	}

	return &followup.ProspectRecord{
		ID:          parsed.ID,
		Email:       parsed.Email,
		FirstName:   parsed.FirstName,
		LastName:    parsed.LastName,
		PartnerName: parsed.PartnerName,
		Website:     parsed.Website,
		Function:    parsed.Function,
		Description: parsed.Description,
		ExternalID:  externalID,
	}, nil
}
