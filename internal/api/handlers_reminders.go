// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"net/http"

	"github.com/bibleos/ark/internal/models"
	"github.com/bibleos/ark/internal/reminders"
)

// SOPReminders handles POST /api/v1/reminders/sop: the SOP review sweep
// across all companies.
func (h *Handlers) SOPReminders(w http.ResponseWriter, r *http.Request) {
	var req models.SOPReminderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.sweeper.RunSOPSweep(r.Context(), req.DryRun)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(reminderResponse(result)))
}

// ExitSurveyReminders handles POST /api/v1/reminders/exit-survey: the
// follow-up sweep for one company's overdue exit surveys.
func (h *Handlers) ExitSurveyReminders(w http.ResponseWriter, r *http.Request) {
	var req models.ExitSurveyReminderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.sweeper.RunExitSurveySweep(r.Context(), req.CompanyID, req.DryRun)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(reminderResponse(result)))
}

func reminderResponse(result reminders.RunResult) models.ReminderRunResponse {
	return models.ReminderRunResponse{
		Success:            true,
		Processed:          result.Processed,
		RemindersCreated:   result.RemindersCreated,
		EscalationsCreated: result.EscalationsCreated,
		DryRun:             result.DryRun,
	}
}
