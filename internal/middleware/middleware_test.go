// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates id when absent", func(t *testing.T) {
		t.Parallel()

		var seen string
		handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		if seen == "" {
			t.Fatal("expected request ID in context")
		}
		if got := rec.Header().Get("X-Request-ID"); got != seen {
			t.Errorf("header id = %q, context id = %q", got, seen)
		}
	})

	t.Run("preserves upstream id", func(t *testing.T) {
		t.Parallel()

		handler := RequestID(func(w http.ResponseWriter, r *http.Request) {})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-42")
		rec := httptest.NewRecorder()
		handler(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "upstream-42" {
			t.Errorf("header id = %q, want upstream-42", got)
		}
	})
}

func TestSchedulerSecret(t *testing.T) {
	t.Parallel()

	const secret = "cron-secret"

	newHandler := func() (http.HandlerFunc, *bool) {
		called := false
		h := SchedulerSecret(secret)(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})
		return h, &called
	}

	t.Run("correct secret passes", func(t *testing.T) {
		t.Parallel()
		handler, called := newHandler()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/sop", nil)
		req.Header.Set(SchedulerSecretHeader, secret)
		rec := httptest.NewRecorder()
		handler(rec, req)

		if !*called {
			t.Error("handler was not called")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		t.Parallel()
		handler, called := newHandler()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/sop", nil)
		req.Header.Set(SchedulerSecretHeader, "guess")
		rec := httptest.NewRecorder()
		handler(rec, req)

		if *called {
			t.Error("handler should not run on secret mismatch")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
			t.Errorf("body missing error code: %s", rec.Body.String())
		}
	})

	t.Run("missing secret rejected", func(t *testing.T) {
		t.Parallel()
		handler, called := newHandler()

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		if *called || rec.Code != http.StatusUnauthorized {
			t.Errorf("called=%v status=%d, want false/401", *called, rec.Code)
		}
	})

	t.Run("empty configured secret rejects everything", func(t *testing.T) {
		t.Parallel()

		handler := SchedulerSecret("")(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler must not run with empty configured secret")
		})

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(SchedulerSecretHeader, "")
		rec := httptest.NewRecorder()
		handler(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/backups", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}
