// Package composerclient is a plain HTTP JSON client for the mail-writer
// service that drafts and sends each followup. Like crmclient it carries
// no retry logic of its own; the resilience envelope wraps calls to it at
// the processor call site.
package composerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wardrockay/followup-engine/internal/resilience"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

var _ followup.ComposerClient = (*Client)(nil)

// Client talks to the mail-writer's followup generation endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryable  resilience.DependencyConfig
}

// NewClient creates a composer client. baseURL is the mail-writer's API
// root (no trailing slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 65 * time.Second},
		retryable:  resilience.ComposerDependencyConfig(),
	}
}

// GenerateFollowup asks the mail-writer to compose and send the next
// followup for req.
func (c *Client) GenerateFollowup(ctx context.Context, req followup.ComposerRequest) (*followup.ComposerResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling composer request: %w", err)
	}

	url := fmt.Sprintf("%s/generate-followup", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building composer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, &followup.ExternalServiceError{Service: "composer", Err: err, Duration: duration.String(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &followup.ExternalServiceError{Service: "composer", StatusCode: resp.StatusCode, Duration: duration.String(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &followup.ExternalServiceError{
			Service:    "composer",
			StatusCode: resp.StatusCode,
			Duration:   duration.String(),
			Err:        fmt.Errorf("composer returned %d: %s", resp.StatusCode, string(body)),
			Retryable:  c.retryable.IsRetryableStatus(resp.StatusCode),
		}
	}

	var parsed followup.ComposerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &followup.ExternalServiceError{Service: "composer", StatusCode: resp.StatusCode, Duration: duration.String(), Err: fmt.Errorf("decoding composer response: %w", err)}
	}

	return &parsed, nil
}
