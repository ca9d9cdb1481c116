// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package backup exports tenant snapshots to object storage and restores
// them. An export walks every registry table scoped to one company and
// assembles a single JSON artifact; a restore replaces the tenant's current
// rows with the artifact's contents in foreign-key-safe order.
package backup

import (
	"context"
	"errors"
	"time"

	"github.com/bibleos/ark/internal/database"
)

// CurrentSchemaVersion is stamped into every artifact. Restores accept
// artifacts at or below this version and reject anything newer: an artifact
// produced by a later deployment may reference tables or columns this one
// does not know how to load.
const CurrentSchemaVersion = 3

// Sentinel errors the API layer maps to response codes.
var (
	ErrBackupNotFound     = errors.New("backup record not found")
	ErrBackupNotCompleted = errors.New("backup is not in completed status")
	ErrVersionTooNew      = errors.New("artifact schema version is newer than this service supports")
)

// Artifact is the JSON snapshot stored in object storage. Tables maps table
// name to the exported rows; tables that failed to export are absent, not
// empty.
type Artifact struct {
	Version   int                         `json:"version"`
	CompanyID string                      `json:"company_id"`
	CreatedAt time.Time                   `json:"created_at"`
	Tables    map[string][]map[string]any `json:"tables"`
}

// Metadata is persisted on the backup record as metadata_json once an export
// completes. TotalRecords always equals the sum of the per-table counts.
type Metadata struct {
	Tables        map[string]int `json:"tables"`
	TotalRecords  int            `json:"total_records"`
	SchemaVersion int            `json:"schema_version"`
}

// TableOutcome is the per-table result of an export or restore pass. Err set
// means the table was skipped after a real failure; a nil Err with zero rows
// means the table was genuinely empty.
type TableOutcome struct {
	Table     string
	Rows      int
	Truncated bool
	Resumed   bool
	Err       error
}

// ExportReport summarizes one export run.
type ExportReport struct {
	BackupID     string
	CompanyID    string
	TotalRecords int
	Outcomes     []TableOutcome
}

// RestoreReport summarizes one restore run. RestoredCounts covers only
// tables whose upsert succeeded; failures appear in InsertOutcomes instead.
type RestoreReport struct {
	BackupID       string
	CompanyID      string
	RestoredCounts map[string]int
	DeleteOutcomes []TableOutcome
	InsertOutcomes []TableOutcome
}

// TenantStore is the tenant-table surface both directions need.
type TenantStore interface {
	SelectTenantRows(ctx context.Context, table, companyID string) (rows []map[string]any, truncated bool, err error)
	DeleteTenantRows(ctx context.Context, table, companyID string) (int64, error)
	UpsertRows(ctx context.Context, table string, rows []map[string]any) (int, error)
}

// RecordStore is the backup record lifecycle surface.
type RecordStore interface {
	CreateBackupRecord(ctx context.Context, id, companyID string) (database.BackupRecord, error)
	GetBackupRecord(ctx context.Context, id, companyID string) (database.BackupRecord, error)
	MarkBackupInProgress(ctx context.Context, id string) error
	MarkBackupCompleted(ctx context.Context, id, storagePath string, fileSize int64, metadataJSON []byte) error
	MarkBackupFailed(ctx context.Context, id string, cause error)
	MarkBackupRestored(ctx context.Context, id string) error
}
