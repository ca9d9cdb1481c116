// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package models

// BackupRunResponse is the payload for a completed export request.
type BackupRunResponse struct {
	Success      bool   `json:"success"`
	BackupID     string `json:"backup_id"`
	TotalRecords int    `json:"total_records"`
}

// RestoreRunResponse is the payload for a completed restore request.
// RestoredCounts maps table name to rows inserted.
type RestoreRunResponse struct {
	Success        bool           `json:"success"`
	BackupID       string         `json:"backup_id"`
	RestoredCounts map[string]int `json:"restored_counts"`
}

// ReminderRunResponse is the payload for a reminder sweep.
// EscalationsCreated is zero for sweeps without an escalation tier.
type ReminderRunResponse struct {
	Success            bool `json:"success"`
	Processed          int  `json:"processed"`
	RemindersCreated   int  `json:"reminders_created"`
	EscalationsCreated int  `json:"escalations_created"`
	DryRun             bool `json:"dry_run,omitempty"`
}

// HealthResponse is the payload for the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}
