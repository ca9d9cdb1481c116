// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"net/http"

	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/models"
)

// Health handles GET /api/v1/health. The service is degraded, not down,
// when the database is unreachable, so the endpoint stays 200 and reports
// the component state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{Status: "ok", Version: h.version, Database: "ok"}

	if err := h.pinger.Ping(r.Context()); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: database unreachable")
		resp.Status = "degraded"
		resp.Database = "unreachable"
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(resp))
}
