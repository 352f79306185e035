package composerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wardrockay/followup-engine/internal/service/followup"
)

func TestGenerateFollowupSuccess(t *testing.T) {
	var received followup.ComposerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-followup" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"draft_id":"draft-2"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.GenerateFollowup(context.Background(), followup.ComposerRequest{
		ExternalID:     "ext-1",
		FollowupNumber: 1,
		Email:          "a@b.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.DraftID != "draft-2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if received.ExternalID != "ext-1" {
		t.Fatalf("request body not forwarded correctly: %+v", received)
	}
}

func TestGenerateFollowupClassifiesRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GenerateFollowup(context.Background(), followup.ComposerRequest{})
	svcErr, ok := err.(*followup.ExternalServiceError)
	if !ok {
		t.Fatalf("expected ExternalServiceError, got %T", err)
	}
	if !svcErr.ShouldRetry() {
		t.Fatalf("502 should be classified retryable for the composer dependency")
	}
}
