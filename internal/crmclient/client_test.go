package crmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wardrockay/followup-engine/internal/service/followup"
)

func TestLookupProspectSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prospects/ext-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"p1","email":"a@b.com","first_name":"Ada","last_name":"Lovelace","partner_name":"Acme","website":"acme.test"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	record, err := client.LookupProspect(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Email != "a@b.com" || record.ExternalID != "ext-1" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestLookupProspectClassifiesRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.LookupProspect(context.Background(), "ext-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var svcErr *followup.ExternalServiceError
	if !asExternalServiceError(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %T", err)
	}
	if !svcErr.ShouldRetry() {
		t.Fatalf("503 should be classified retryable for the CRM dependency")
	}
}

func TestLookupProspectClassifiesNonRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.LookupProspect(context.Background(), "ext-1")
	var svcErr *followup.ExternalServiceError
	if !asExternalServiceError(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %T", err)
	}
	if svcErr.ShouldRetry() {
		t.Fatalf("404 must not be classified retryable")
	}
}

func asExternalServiceError(err error, target **followup.ExternalServiceError) bool {
	svcErr, ok := err.(*followup.ExternalServiceError)
	if !ok {
		return false
	}
	*target = svcErr
	return true
}
