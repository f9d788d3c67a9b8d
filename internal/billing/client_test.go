package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req CheckoutSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Reference == "" || req.AmountCents != 499 {
			t.Errorf("unexpected request payload: %+v", req)
		}
		json.NewEncoder(w).Encode(CheckoutSessionResponse{
			SessionID:   "sess_123",
			RedirectURL: "https://pay.example.com/sess_123",
			Status:      "created",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	session, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{
		Reference:   "ref-1",
		AmountCents: 499,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.SessionID != "sess_123" {
		t.Errorf("session id = %q, want sess_123", session.SessionID)
	}
	if session.RedirectURL != "https://pay.example.com/sess_123" {
		t.Errorf("redirect url = %q", session.RedirectURL)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(SessionStatus{SessionID: "sess_9", Status: "completed"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	status, err := client.GetSession(context.Background(), "sess_9")
	if err != nil {
		t.Fatalf("GetSession after retries: %v", err)
	}
	if status.Status != "completed" {
		t.Errorf("status = %q, want completed", status.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.GetSession(context.Background(), "sess_x"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retries on 4xx)", got)
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient(ClientConfig{APIKey: "k"}); err == nil {
		t.Error("expected error for missing base url")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://pay.example.com"}); err == nil {
		t.Error("expected error for missing api key")
	}
}
