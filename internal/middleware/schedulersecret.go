// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/models"
)

// SchedulerSecretHeader is the header external cron services use to
// authenticate scheduled job triggers.
const SchedulerSecretHeader = "x-scheduler-secret"

// SchedulerSecret guards scheduler-triggered endpoints with a shared secret.
// The comparison is constant-time. A misconfigured empty secret rejects all
// requests rather than allowing any.
func SchedulerSecret(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(SchedulerSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logging.Ctx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Scheduler secret mismatch")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				//nolint:errcheck // HTTP response write errors are not recoverable
				json.NewEncoder(w).Encode(models.NewErrorResponse(
					models.ErrCodeUnauthorized, "invalid scheduler secret"))
				return
			}

			next(w, r)
		}
	}
}
