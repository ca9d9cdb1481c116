// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package mailer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/bibleos/ark/internal/config"
)

func testEmailConfig(serverURL string) config.EmailConfig {
	return config.EmailConfig{
		Enabled:       true,
		ServerURL:     serverURL,
		APIToken:      "test-token",
		FromAddress:   "ops@bibleos.example",
		Timeout:       5 * time.Second,
		RatePerSecond: 1000,
		RateBurst:     1000,
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	var got providerEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/email" {
			t.Errorf("path = %q, want /email", r.URL.Path)
		}
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(testEmailConfig(srv.URL))

	err := c.Send(context.Background(), Message{
		To:       "manager@example.com",
		Subject:  "SOP review due",
		TextBody: "The quarterly safety SOP review is due in 12 days.",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("token header = %q", gotToken)
	}
	if got.From != "ops@bibleos.example" || got.To != "manager@example.com" {
		t.Errorf("unexpected addressing: from=%q to=%q", got.From, got.To)
	}
	if got.Subject != "SOP review due" {
		t.Errorf("subject = %q", got.Subject)
	}
}

func TestSendProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		//nolint:errcheck
		w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid 'To' address"}`))
	}))
	defer srv.Close()

	c := New(testEmailConfig(srv.URL))

	if err := c.Send(context.Background(), Message{To: "bad"}); err == nil {
		t.Fatal("expected error for provider rejection")
	}
}

func TestDisabledClientSkipsProvider(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := testEmailConfig(srv.URL)
	cfg.Enabled = false
	c := New(cfg)

	if c.Enabled() {
		t.Error("client should report disabled")
	}
	if err := c.Send(context.Background(), Message{To: "x@example.com"}); err != nil {
		t.Fatalf("disabled Send should succeed silently: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("provider called %d times, want 0", calls.Load())
	}
}

func TestMissingTokenDisablesClient(t *testing.T) {
	t.Parallel()

	cfg := testEmailConfig("http://localhost:0")
	cfg.APIToken = ""
	if New(cfg).Enabled() {
		t.Error("client without token should be disabled")
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testEmailConfig(srv.URL))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		//nolint:errcheck // failures are the point
		c.Send(ctx, Message{To: "x@example.com"})
	}

	// After five consecutive failures the breaker opens and later sends
	// fail fast without reaching the provider.
	if calls.Load() != 5 {
		t.Errorf("provider calls = %d, want 5 (breaker open afterwards)", calls.Load())
	}
}
