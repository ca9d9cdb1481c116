// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/bibleos/ark/internal/models"
	"github.com/bibleos/ark/internal/validation"
)

// BackupRun handles POST /api/v1/backups. The export runs synchronously;
// callers should still poll the record, since per-table outcomes are only
// reflected in metadata_json.
func (h *Handlers) BackupRun(w http.ResponseWriter, r *http.Request) {
	var req models.BackupRunRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	report, err := h.exporter.Run(r.Context(), req.BackupID, req.CompanyID)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(models.BackupRunResponse{
		Success:      true,
		BackupID:     report.BackupID,
		TotalRecords: report.TotalRecords,
	}))
}

// BackupRestore handles POST /api/v1/backups/restore.
func (h *Handlers) BackupRestore(w http.ResponseWriter, r *http.Request) {
	var req models.RestoreRunRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	report, err := h.restorer.Run(r.Context(), req.BackupID, req.CompanyID)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(models.RestoreRunResponse{
		Success:        true,
		BackupID:       report.BackupID,
		RestoredCounts: report.RestoredCounts,
	}))
}

// backupRecordView is the poll payload for one backup record.
type backupRecordView struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	Status        string          `json:"status"`
	StoragePath   *string         `json:"storage_path,omitempty"`
	FileSizeBytes *int64          `json:"file_size_bytes,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	CreatedAt     string          `json:"created_at"`
	CompletedAt   *string         `json:"completed_at,omitempty"`
	RestoredAt    *string         `json:"restored_at,omitempty"`
}

// BackupGet handles GET /api/v1/backups/{id}?company_id=. Completion is
// eventually consistent from the caller's point of view: the status field
// here, not the trigger response, is the source of truth.
func (h *Handlers) BackupGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := r.URL.Query().Get("company_id")

	params := struct {
		BackupID  string `validate:"required,uuid4"`
		CompanyID string `validate:"required,uuid4"`
	}{BackupID: id, CompanyID: companyID}
	if verr := validation.ValidateStruct(&params); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, verr)
		return
	}

	rec, err := h.records.GetBackupRecord(r.Context(), id, companyID)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, r, status, code, msg, err)
		return
	}

	view := backupRecordView{
		ID:            rec.ID,
		CompanyID:     rec.CompanyID,
		Status:        rec.Status,
		StoragePath:   rec.StoragePath,
		FileSizeBytes: rec.FileSizeBytes,
		Metadata:      rec.MetadataJSON,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.UTC().Format(time.RFC3339)
		view.CompletedAt = &s
	}
	if rec.RestoredAt != nil {
		s := rec.RestoredAt.UTC().Format(time.RFC3339)
		view.RestoredAt = &s
	}

	respondJSON(w, r, http.StatusOK, models.NewSuccessResponse(view))
}
