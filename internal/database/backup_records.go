// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
)

// Backup record lifecycle states.
const (
	BackupStatusPending    = "pending"
	BackupStatusInProgress = "in_progress"
	BackupStatusCompleted  = "completed"
	BackupStatusFailed     = "failed"
)

// BackupRecord tracks one backup through its lifecycle. The record is
// bookkeeping only; the snapshot itself lives in object storage at
// StoragePath.
type BackupRecord struct {
	ID            string
	CompanyID     string
	Status        string
	StoragePath   *string
	FileSizeBytes *int64
	MetadataJSON  []byte
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	RestoredAt    *time.Time
}

const backupRecordColumns = `id, company_id, status, storage_path,
	file_size_bytes, metadata_json, error_message, created_at, updated_at,
	completed_at, restored_at`

// CreateBackupRecord inserts a pending record. Re-requesting an existing
// backup id is not an error; the existing record is returned unchanged so a
// retried export picks up where the record already is. The conflict update
// is scoped to the requesting company: an id already claimed by another
// tenant is left untouched and reported as ErrNotFound.
func (s *Store) CreateBackupRecord(ctx context.Context, id, companyID string) (rec BackupRecord, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "backup_records", time.Since(start), err) }()

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO backup_records (id, company_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET updated_at = now()
		WHERE backup_records.company_id = EXCLUDED.company_id
		RETURNING %s`, backupRecordColumns),
		id, companyID, BackupStatusPending)

	return scanBackupRecord(row)
}

// GetBackupRecord fetches one record by id, scoped to the company so a
// backup id from another tenant behaves as missing.
func (s *Store) GetBackupRecord(ctx context.Context, id, companyID string) (rec BackupRecord, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "backup_records", time.Since(start), err) }()

	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM backup_records WHERE id = $1 AND company_id = $2`,
		backupRecordColumns), id, companyID)

	return scanBackupRecord(row)
}

// MarkBackupInProgress flips a record to in_progress.
func (s *Store) MarkBackupInProgress(ctx context.Context, id string) error {
	return s.updateBackupStatus(ctx, id, BackupStatusInProgress,
		`UPDATE backup_records SET status = $2, updated_at = now() WHERE id = $1`)
}

// MarkBackupCompleted records the successful outcome of an export.
func (s *Store) MarkBackupCompleted(ctx context.Context, id, storagePath string, fileSize int64, metadataJSON []byte) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "backup_records", time.Since(start), err) }()

	tag, err := s.pool.Exec(ctx, `
		UPDATE backup_records
		SET status = $2, storage_path = $3, file_size_bytes = $4,
		    metadata_json = $5, completed_at = now(), updated_at = now()
		WHERE id = $1`,
		id, BackupStatusCompleted, storagePath, fileSize, metadataJSON)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkBackupFailed is the best-effort terminal update on an export failure.
// It never returns an error: the export's own failure is what the caller
// needs to surface, not a second one from the bookkeeping write.
func (s *Store) MarkBackupFailed(ctx context.Context, id string, cause error) {
	start := time.Now()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE backup_records
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, BackupStatusFailed, msg)
	metrics.RecordDBQuery("update", "backup_records", time.Since(start), err)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("backup_id", id).
			Msg("Failed to mark backup record failed")
	}
}

// MarkBackupRestored stamps the record after a restore run.
func (s *Store) MarkBackupRestored(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "backup_records", time.Since(start), err) }()

	tag, err := s.pool.Exec(ctx, `
		UPDATE backup_records SET restored_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark backup restored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) updateBackupStatus(ctx context.Context, id, status, sql string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "backup_records", time.Since(start), err) }()

	tag, err := s.pool.Exec(ctx, sql, id, status)
	if err != nil {
		return fmt.Errorf("update backup status to %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBackupRecord(row pgx.Row) (BackupRecord, error) {
	var rec BackupRecord
	err := row.Scan(&rec.ID, &rec.CompanyID, &rec.Status, &rec.StoragePath,
		&rec.FileSizeBytes, &rec.MetadataJSON, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt, &rec.RestoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BackupRecord{}, ErrNotFound
		}
		return BackupRecord{}, err
	}
	return rec, nil
}
