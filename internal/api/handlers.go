// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package api exposes the service over HTTP: backup/restore triggers, the
// retention scan, the reminder sweeps, a backup record poll endpoint, and
// health/metrics. Every payload travels in the models.APIResponse envelope.
package api

import (
	"context"

	"github.com/bibleos/ark/internal/backup"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/reminders"
	"github.com/bibleos/ark/internal/retention"
)

// Exporter runs backup exports.
type Exporter interface {
	Run(ctx context.Context, backupID, companyID string) (backup.ExportReport, error)
}

// Restorer runs backup restores.
type Restorer interface {
	Run(ctx context.Context, backupID, companyID string) (backup.RestoreReport, error)
}

// Scanner runs retention scans.
type Scanner interface {
	Scan(ctx context.Context, companyID string, dryRun, apply bool) (retention.Report, error)
}

// Sweeper runs reminder sweeps.
type Sweeper interface {
	RunSOPSweep(ctx context.Context, dryRun bool) (reminders.RunResult, error)
	RunExitSurveySweep(ctx context.Context, companyID string, dryRun bool) (reminders.RunResult, error)
}

// Records reads backup records for the poll endpoint.
type Records interface {
	GetBackupRecord(ctx context.Context, id, companyID string) (database.BackupRecord, error)
}

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds every HTTP handler's dependencies.
type Handlers struct {
	exporter Exporter
	restorer Restorer
	scanner  Scanner
	sweeper  Sweeper
	records  Records
	pinger   Pinger
	version  string
}

// NewHandlers wires the handler set.
func NewHandlers(exporter Exporter, restorer Restorer, scanner Scanner, sweeper Sweeper, records Records, pinger Pinger, version string) *Handlers {
	return &Handlers{
		exporter: exporter,
		restorer: restorer,
		scanner:  scanner,
		sweeper:  sweeper,
		records:  records,
		pinger:   pinger,
		version:  version,
	}
}
