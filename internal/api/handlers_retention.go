// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"net/http"

	"github.com/bibleos/ark/internal/models"
)

// RetentionScan handles POST /api/v1/retention/scan. The scanner is
// read-only; the response's applied fields are always false.
func (h *Handlers) RetentionScan(w http.ResponseWriter, r *http.Request) {
	var req models.RetentionScanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	report, err := h.scanner.Scan(r.Context(), req.CompanyID, req.DryRun, req.Apply)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(report))
}
