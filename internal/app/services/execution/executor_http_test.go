package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPExecutorSubmitsPayload(t *testing.T) {
	var gotPayload, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Payload string `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotPayload = body.Payload
		json.NewEncoder(w).Encode(map[string]string{"reference": "0xabc"})
	}))
	defer srv.Close()

	exec, err := NewHTTPExecutor(srv.Client(), srv.URL, "key-123", nil)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	ref, err := exec.Execute(context.Background(), `{"to":"addr"}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ref != "0xabc" {
		t.Fatalf("reference = %q", ref)
	}
	if gotPayload != `{"to":"addr"}` {
		t.Fatalf("payload = %q", gotPayload)
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestHTTPExecutorErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"rejected payload", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient funds"})
		}},
		{"missing reference", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			exec, err := NewHTTPExecutor(srv.Client(), srv.URL, "", nil)
			if err != nil {
				t.Fatalf("new executor: %v", err)
			}
			if _, err := exec.Execute(context.Background(), "tx"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHTTPExecutorRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPExecutor(nil, "  ", "", nil); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
