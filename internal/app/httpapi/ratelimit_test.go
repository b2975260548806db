package httpapi

import (
	"net/http"
	"testing"
)

func TestRateLimitPerMember(t *testing.T) {
	h := newTestHandler(t, Config{RateLimitPerSecond: 1, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, http.MethodGet, "/wallets", "alice", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/wallets", "alice", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body struct {
		Code     string            `json:"code"`
		Metadata map[string]string `json:"metadata"`
	}
	decodeBody(t, rec, &body)
	if body.Code != "RATE_LIMITED" {
		t.Fatalf("code = %s, want RATE_LIMITED", body.Code)
	}
	if body.Metadata["actor"] != "alice" {
		t.Fatalf("metadata actor = %q, want alice", body.Metadata["actor"])
	}

	// Buckets are per member; bob is unaffected by alice's exhaustion.
	if rec := doJSON(t, h, http.MethodGet, "/wallets", "bob", nil); rec.Code != http.StatusOK {
		t.Fatalf("bob status = %d, want 200", rec.Code)
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	h := newTestHandler(t, Config{})

	for i := 0; i < 20; i++ {
		if rec := doJSON(t, h, http.MethodGet, "/wallets", "alice", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestRateLimitedRequestsAreAudited(t *testing.T) {
	h := newTestHandler(t, Config{RateLimitPerSecond: 1, RateLimitBurst: 1})

	if rec := doJSON(t, h, http.MethodGet, "/wallets", "alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/wallets", "alice", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/audit?limit=1", "admin", nil)
	var entries []auditEntry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].Status != http.StatusTooManyRequests {
		t.Fatalf("expected the rejected request in the audit trail, got %+v", entries)
	}
}
