// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
	"github.com/bibleos/ark/internal/schema"
	"github.com/bibleos/ark/internal/storage"
	"github.com/bibleos/ark/internal/tenantlock"
)

// Restorer replaces a tenant's data with a previously exported artifact.
type Restorer struct {
	records RecordStore
	tenants TenantStore
	objects storage.ObjectStore
	graph   *schema.Graph
	locks   *tenantlock.Keyed
	now     func() time.Time
}

// NewRestorer wires a restorer.
func NewRestorer(records RecordStore, tenants TenantStore, objects storage.ObjectStore, graph *schema.Graph, locks *tenantlock.Keyed) *Restorer {
	return &Restorer{
		records: records,
		tenants: tenants,
		objects: objects,
		graph:   graph,
		locks:   locks,
		now:     time.Now,
	}
}

// Run restores one backup into its company. Exactly one restore per company
// runs at a time; a concurrent attempt fails fast with tenantlock.ErrBusy
// because two interleaved delete/insert passes would corrupt the tenant.
//
// The delete phase removes children before parents and never touches the
// companies row. The insert phase then upserts artifact rows parents-first,
// keyed by id, so re-running the same restore is idempotent. Rows flagged as
// sample data are dropped before insert; sample rows present in the tenant
// are still deleted, so sample data does not survive a restore.
func (r *Restorer) Run(ctx context.Context, backupID, companyID string) (RestoreReport, error) {
	release, err := r.locks.TryAcquire(companyID)
	if err != nil {
		metrics.TenantLockContention.Inc()
		return RestoreReport{}, fmt.Errorf("restore for company %s: %w", companyID, err)
	}
	defer release()

	start := r.now()
	log := logging.Ctx(ctx).With().
		Str("backup_id", backupID).
		Str("company_id", companyID).
		Logger()

	artifact, err := r.loadArtifact(ctx, backupID, companyID)
	if err != nil {
		metrics.RecordRestore(r.now().Sub(start), 0, err, "load")
		return RestoreReport{}, err
	}

	report := RestoreReport{
		BackupID:       backupID,
		CompanyID:      companyID,
		RestoredCounts: make(map[string]int, len(artifact.Tables)),
	}

	for _, table := range r.graph.DeleteOrder() {
		deleted, err := r.tenants.DeleteTenantRows(ctx, table.Name, companyID)
		if err != nil {
			log.Warn().Err(err).Str("table", table.Name).Msg("Delete phase failed for table, skipping")
			metrics.RestoreErrors.WithLabelValues("delete").Inc()
			report.DeleteOutcomes = append(report.DeleteOutcomes, TableOutcome{Table: table.Name, Err: err})
			continue
		}
		report.DeleteOutcomes = append(report.DeleteOutcomes, TableOutcome{Table: table.Name, Rows: int(deleted)})
	}

	total := 0
	for _, table := range r.graph.InsertOrder() {
		rows, ok := artifact.Tables[table.Name]
		if !ok {
			continue
		}
		rows = dropSampleRows(rows)

		inserted, err := r.tenants.UpsertRows(ctx, table.Name, rows)
		if err != nil {
			log.Warn().Err(err).Str("table", table.Name).Msg("Insert phase failed for table, skipping")
			metrics.RestoreErrors.WithLabelValues("insert").Inc()
			report.InsertOutcomes = append(report.InsertOutcomes, TableOutcome{Table: table.Name, Rows: inserted, Err: err})
			continue
		}
		report.InsertOutcomes = append(report.InsertOutcomes, TableOutcome{Table: table.Name, Rows: inserted})
		report.RestoredCounts[table.Name] = inserted
		total += inserted
	}

	if err := r.records.MarkBackupRestored(ctx, backupID); err != nil {
		// The data is already restored; losing the stamp is log-worthy only.
		log.Warn().Err(err).Msg("Stamping restored_at failed")
	}

	metrics.RecordRestore(r.now().Sub(start), total, nil, "")
	log.Info().
		Int("restored_records", total).
		Int("tables", len(report.RestoredCounts)).
		Msg("Restore completed")

	return report, nil
}

// loadArtifact validates the record and fetches and version-checks the
// artifact. Everything here runs before any mutation, so a failure leaves
// the tenant untouched.
func (r *Restorer) loadArtifact(ctx context.Context, backupID, companyID string) (Artifact, error) {
	rec, err := r.records.GetBackupRecord(ctx, backupID, companyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Artifact{}, ErrBackupNotFound
		}
		return Artifact{}, fmt.Errorf("load backup record: %w", err)
	}
	if rec.Status != database.BackupStatusCompleted {
		return Artifact{}, fmt.Errorf("%w: status is %s", ErrBackupNotCompleted, rec.Status)
	}

	key := storage.ArtifactKey(companyID, backupID)
	if rec.StoragePath != nil && *rec.StoragePath != "" {
		key = *rec.StoragePath
	}

	data, err := r.objects.Get(ctx, key)
	if err != nil {
		return Artifact{}, fmt.Errorf("download artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact: %w", err)
	}

	if artifact.Version > CurrentSchemaVersion {
		return Artifact{}, fmt.Errorf("%w: artifact version %d, supported %d",
			ErrVersionTooNew, artifact.Version, CurrentSchemaVersion)
	}
	return artifact, nil
}

// dropSampleRows filters out rows whose is_sample value is truthy. Sample
// rows never enter an artifact in the first place; this guards against
// hand-edited or legacy artifacts.
func dropSampleRows(rows []map[string]any) []map[string]any {
	out := rows[:0:0]
	for _, row := range rows {
		if isTruthy(row["is_sample"]) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "t" || val == "1"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}
