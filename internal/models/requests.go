// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package models

// BackupRunRequest triggers an export of a company's tenant data.
// BackupID identifies (or creates) the bookkeeping record; artifacts are
// written to object storage under the company prefix.
type BackupRunRequest struct {
	BackupID  string `json:"backup_id" validate:"required,uuid4"`
	CompanyID string `json:"company_id" validate:"required,uuid4"`
}

// RestoreRunRequest triggers a restore of a company from a completed backup.
// CompanyID must match the backup record's company; cross-tenant restores
// are rejected.
type RestoreRunRequest struct {
	BackupID  string `json:"backup_id" validate:"required,uuid4"`
	CompanyID string `json:"company_id" validate:"required,uuid4"`
}

// RetentionScanRequest runs the read-only retention scanner.
// CompanyID empty means all companies with retention settings. Apply is
// accepted for forward compatibility but never honored; the scanner reports
// only.
type RetentionScanRequest struct {
	CompanyID string `json:"company_id,omitempty" validate:"omitempty,uuid4"`
	DryRun    bool   `json:"dry_run,omitempty"`
	Apply     bool   `json:"apply,omitempty"`
}

// SOPReminderRequest runs the SOP review reminder sweep across all companies.
type SOPReminderRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// ExitSurveyReminderRequest runs the exit-survey follow-up sweep for one
// company.
type ExitSurveyReminderRequest struct {
	CompanyID string `json:"company_id" validate:"required,uuid4"`
	DryRun    bool   `json:"dry_run,omitempty"`
}
