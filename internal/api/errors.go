// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package api

import (
	"errors"
	"net/http"

	"github.com/bibleos/ark/internal/backup"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/models"
	"github.com/bibleos/ark/internal/tenantlock"
)

// mapError translates domain sentinels into HTTP status and error code.
// Anything unrecognized is an internal error.
func mapError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, backup.ErrBackupNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, models.ErrCodeNotFound, "backup record not found"
	case errors.Is(err, backup.ErrBackupNotCompleted):
		return http.StatusBadRequest, models.ErrCodeBackupNotCompleted, "backup is not in completed status"
	case errors.Is(err, backup.ErrVersionTooNew):
		return http.StatusBadRequest, models.ErrCodeVersionUnsupported, "backup artifact schema version is not supported"
	case errors.Is(err, tenantlock.ErrBusy):
		return http.StatusConflict, models.ErrCodeTenantBusy, "another backup or restore is running for this company"
	default:
		return http.StatusInternalServerError, models.ErrCodeInternal, "internal error"
	}
}
