package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSetsSessionHeaders validates bearer token and tenant scoping
func TestNewSetsSessionHeaders(t *testing.T) {
	var gotAuth, gotTenant, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get(TenantHeader)
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/api/v1", Timeout: time.Second, Token: "tok_123", Tenant: "guitar"})
	resp, err := c.R().Get("/members")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode() != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode())
	}

	if gotAuth != "Bearer tok_123" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
	if gotTenant != "guitar" {
		t.Errorf("Expected tenant header 'guitar', got %q", gotTenant)
	}
	if gotUA != UserAgent {
		t.Errorf("Expected User-Agent %q, got %q", UserAgent, gotUA)
	}
}

// TestNewWithoutSession validates that no auth headers leak when absent
func TestNewWithoutSession(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:8080/api/v1"})

	if c.Header.Get(TenantHeader) != "" {
		t.Error("Tenant header should not be set")
	}
	if c.Token != "" {
		t.Error("Token should not be set")
	}
	if c.BaseURL != "http://localhost:8080/api/v1" {
		t.Errorf("Unexpected base URL %s", c.BaseURL)
	}
}
