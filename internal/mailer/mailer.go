// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package mailer delivers reminder emails through a Postmark-compatible HTTP
// API. Delivery is best-effort: reminder sweeps record their notification
// rows first and treat a failed send as a logged outcome, never a rollback.
//
// The provider is guarded by a circuit breaker (a flapping email API must
// not stall a sweep over hundreds of recipients) and a client-side rate
// limiter matching the provider's send quota.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer is the delivery surface reminder sweeps depend on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// Client sends email through a Postmark-compatible /email endpoint.
type Client struct {
	serverURL  string
	token      string
	from       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	limiter    *rate.Limiter
	enabled    bool
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New builds a Client from configuration.
func New(cfg config.EmailConfig, opts ...Option) *Client {
	c := &Client{
		serverURL:  cfg.ServerURL,
		token:      cfg.APIToken,
		from:       cfg.FromAddress,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		enabled:    cfg.Enabled && cfg.APIToken != "",
	}

	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "email-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Email circuit breaker state change")
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether sends will actually reach the provider.
func (c *Client) Enabled() bool {
	return c.enabled
}

type providerEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	HTMLBody string `json:"HtmlBody,omitempty"`
}

// Send delivers one message. Disabled clients report success without
// contacting the provider so reminder sweeps degrade to notification rows
// only.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.enabled {
		metrics.EmailsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, msg)
	})
	if err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return err
	}

	metrics.EmailsSent.WithLabelValues("sent").Inc()
	return nil
}

func (c *Client) post(ctx context.Context, msg Message) error {
	payload := providerEmail{
		From:     c.from,
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Provider error bodies are small JSON documents; surface a slice.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("email provider status %d: %s", resp.StatusCode, snippet)
	}

	return nil
}
