// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bibleos/ark/internal/checkpoint"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
	"github.com/bibleos/ark/internal/schema"
	"github.com/bibleos/ark/internal/storage"
	"github.com/bibleos/ark/internal/tenantlock"
)

// Checkpointer persists per-table export progress so an interrupted export
// can resume without re-reading finished tables.
type Checkpointer interface {
	MarkTable(ctx context.Context, backupID string, cp checkpoint.TableCheckpoint) error
	CompletedTables(ctx context.Context, backupID string) (map[string]checkpoint.TableCheckpoint, error)
	Clear(ctx context.Context, backupID string) error
}

// Exporter produces backup artifacts.
type Exporter struct {
	records     RecordStore
	tenants     TenantStore
	objects     storage.ObjectStore
	checkpoints Checkpointer
	graph       *schema.Graph
	locks       *tenantlock.Keyed
	now         func() time.Time
}

// NewExporter wires an exporter.
func NewExporter(records RecordStore, tenants TenantStore, objects storage.ObjectStore, checkpoints Checkpointer, graph *schema.Graph, locks *tenantlock.Keyed) *Exporter {
	return &Exporter{
		records:     records,
		tenants:     tenants,
		objects:     objects,
		checkpoints: checkpoints,
		graph:       graph,
		locks:       locks,
		now:         time.Now,
	}
}

// Run exports every tenant table for one company into a single artifact and
// records the outcome on the backup record. The company lock is shared with
// restores: an export reading a tenant mid-restore would snapshot the
// half-deleted state, so a concurrent attempt fails fast with
// tenantlock.ErrBusy.
//
// Per-table read failures are logged, reported in the outcome list, and
// otherwise skipped: a partial backup is accepted rather than failed, and
// the skipped table is simply absent from the artifact and its metadata.
// Only infrastructure failures (serialization, upload, record updates) flip
// the record to failed and surface as an error.
func (e *Exporter) Run(ctx context.Context, backupID, companyID string) (ExportReport, error) {
	release, err := e.locks.TryAcquire(companyID)
	if err != nil {
		metrics.TenantLockContention.Inc()
		return ExportReport{}, fmt.Errorf("export for company %s: %w", companyID, err)
	}
	defer release()

	start := e.now()
	log := logging.Ctx(ctx).With().
		Str("backup_id", backupID).
		Str("company_id", companyID).
		Logger()

	rec, err := e.records.CreateBackupRecord(ctx, backupID, companyID)
	if err != nil {
		return ExportReport{}, fmt.Errorf("create backup record: %w", err)
	}
	// A backup id already claimed by another tenant behaves as missing, the
	// same scoping GetBackupRecord applies on reads.
	if rec.CompanyID != companyID {
		return ExportReport{}, fmt.Errorf("backup %s: %w", backupID, ErrBackupNotFound)
	}
	if err := e.records.MarkBackupInProgress(ctx, backupID); err != nil {
		return ExportReport{}, fmt.Errorf("mark backup in progress: %w", err)
	}

	resumed, err := e.checkpoints.CompletedTables(ctx, backupID)
	if err != nil {
		// A broken checkpoint store costs resumability, not the backup.
		log.Warn().Err(err).Msg("Reading export checkpoints failed, exporting from scratch")
		resumed = nil
	}

	report := ExportReport{BackupID: backupID, CompanyID: companyID}
	artifact := Artifact{
		Version:   CurrentSchemaVersion,
		CompanyID: companyID,
		CreatedAt: start.UTC(),
		Tables:    make(map[string][]map[string]any, e.graph.Len()),
	}

	for _, table := range e.graph.ExportOrder() {
		outcome := e.exportTable(ctx, log, backupID, companyID, table, resumed, &artifact)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Err == nil {
			report.TotalRecords += outcome.Rows
		}
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		err = fmt.Errorf("serialize artifact: %w", err)
		e.fail(ctx, backupID, start, err)
		return report, err
	}

	key := storage.ArtifactKey(companyID, backupID)
	if err := e.objects.Put(ctx, key, data); err != nil {
		err = fmt.Errorf("upload artifact: %w", err)
		e.fail(ctx, backupID, start, err)
		return report, err
	}

	metadata := Metadata{
		Tables:        make(map[string]int, len(report.Outcomes)),
		TotalRecords:  report.TotalRecords,
		SchemaVersion: CurrentSchemaVersion,
	}
	for _, outcome := range report.Outcomes {
		if outcome.Err == nil {
			metadata.Tables[outcome.Table] = outcome.Rows
		}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		err = fmt.Errorf("serialize metadata: %w", err)
		e.fail(ctx, backupID, start, err)
		return report, err
	}

	if err := e.records.MarkBackupCompleted(ctx, backupID, key, int64(len(data)), metadataJSON); err != nil {
		err = fmt.Errorf("mark backup completed: %w", err)
		e.fail(ctx, backupID, start, err)
		return report, err
	}

	if err := e.checkpoints.Clear(ctx, backupID); err != nil {
		log.Warn().Err(err).Msg("Clearing export checkpoints failed")
	}

	metrics.RecordBackup(e.now().Sub(start), report.TotalRecords, nil, "")
	metrics.BackupLastSuccess.SetToCurrentTime()
	log.Info().
		Int("total_records", report.TotalRecords).
		Int("tables", len(metadata.Tables)).
		Int64("bytes", int64(len(data))).
		Msg("Backup completed")

	return report, nil
}

func (e *Exporter) exportTable(ctx context.Context, log zerolog.Logger, backupID, companyID string, table schema.Table, resumed map[string]checkpoint.TableCheckpoint, artifact *Artifact) TableOutcome {
	if cp, ok := resumed[table.Name]; ok && len(cp.Payload) > 0 {
		var rows []map[string]any
		if err := json.Unmarshal(cp.Payload, &rows); err == nil {
			artifact.Tables[table.Name] = rows
			return TableOutcome{Table: table.Name, Rows: len(rows), Truncated: cp.Truncated, Resumed: true}
		}
		log.Warn().Str("table", table.Name).Msg("Discarding unreadable export checkpoint")
	}

	rows, truncated, err := e.tenants.SelectTenantRows(ctx, table.Name, companyID)
	if err != nil {
		log.Warn().Err(err).Str("table", table.Name).Msg("Table export failed, skipping")
		metrics.BackupErrors.WithLabelValues("table").Inc()
		return TableOutcome{Table: table.Name, Err: err}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if truncated {
		metrics.BackupTablesTruncated.Inc()
		log.Warn().Str("table", table.Name).Int("rows", len(rows)).Msg("Table export truncated at row cap")
	}

	artifact.Tables[table.Name] = rows

	payload, err := json.Marshal(rows)
	if err == nil {
		err = e.checkpoints.MarkTable(ctx, backupID, checkpoint.TableCheckpoint{
			Table:     table.Name,
			Rows:      len(rows),
			Truncated: truncated,
			Payload:   payload,
		})
	}
	if err != nil {
		log.Warn().Err(err).Str("table", table.Name).Msg("Writing export checkpoint failed")
	}

	return TableOutcome{Table: table.Name, Rows: len(rows), Truncated: truncated}
}

func (e *Exporter) fail(ctx context.Context, backupID string, start time.Time, cause error) {
	e.records.MarkBackupFailed(ctx, backupID, cause)
	metrics.RecordBackup(e.now().Sub(start), 0, cause, "export")
	logging.Ctx(ctx).Error().Err(cause).Str("backup_id", backupID).Msg("Backup failed")
}
