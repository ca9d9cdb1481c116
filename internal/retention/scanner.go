// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package retention reports how many tenant rows have aged past their
// configured retention windows. The scanner counts; it never deletes.
// Deletion is deliberately unimplemented, and the Capability marker makes
// that contract explicit instead of silently ignoring destructive flags.
package retention

import (
	"context"
	"time"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
)

// Capability describes what a scanner is allowed to do to tenant data.
type Capability string

// CapabilityReadOnly is the only capability this scanner will ever report:
// every code path is a COUNT query.
const CapabilityReadOnly Capability = "read_only"

// Tables counted per retention class.
const (
	submissionsTable = "form_submissions"
)

// alertTables are the tables covered by the alerts retention window.
var alertTables = []string{"sop_review_alerts", "notifications"}

// Store is the database surface the scanner reads through.
type Store interface {
	GetRetentionSettings(ctx context.Context, companyID string) (database.RetentionSettings, error)
	ListRetentionCompanyIDs(ctx context.Context) ([]string, error)
	CountRowsOlderThan(ctx context.Context, table, companyID string, cutoff time.Time) (int64, error)
}

// CompanyReport is the per-company scan result.
type CompanyReport struct {
	CompanyID             string    `json:"company_id"`
	Mode                  string    `json:"mode"`
	SubmissionsCutoff     time.Time `json:"submissions_cutoff"`
	AlertsCutoff          time.Time `json:"alerts_cutoff"`
	SubmissionsCandidates int64     `json:"submissions_candidates"`
	AlertsCandidates      int64     `json:"alerts_candidates"`
	Applied               bool      `json:"applied"`
	Note                  string    `json:"note,omitempty"`
}

// Report is the full scan result.
type Report struct {
	Success        bool            `json:"success"`
	DryRun         bool            `json:"dry_run"`
	ApplyRequested bool            `json:"apply_requested"`
	Companies      []CompanyReport `json:"companies"`
}

// Scanner counts retention-eligible rows per company.
type Scanner struct {
	store    Store
	defaults config.RetentionConfig
	now      func() time.Time
}

// NewScanner wires a scanner with the configured default windows.
func NewScanner(store Store, defaults config.RetentionConfig) *Scanner {
	return &Scanner{store: store, defaults: defaults, now: time.Now}
}

// Capability reports the scanner's contract.
func (s *Scanner) Capability() Capability {
	return CapabilityReadOnly
}

// Scan runs a retention scan. An empty companyID scans every company with
// retention configured. The apply flag is accepted and recorded but never
// acted on; Applied is always false.
func (s *Scanner) Scan(ctx context.Context, companyID string, dryRun, apply bool) (Report, error) {
	start := s.now()
	report := Report{Success: true, DryRun: dryRun, ApplyRequested: apply}

	var companies []string
	if companyID != "" {
		companies = []string{companyID}
	} else {
		var err error
		companies, err = s.store.ListRetentionCompanyIDs(ctx)
		if err != nil {
			return Report{}, err
		}
	}

	for _, id := range companies {
		cr, err := s.scanCompany(ctx, id, apply)
		if err != nil {
			if companyID != "" {
				return Report{}, err
			}
			// A broken company must not abort a fleet-wide scan.
			logging.Ctx(ctx).Error().Err(err).Str("company_id", id).Msg("Retention scan failed for company")
			cr = CompanyReport{CompanyID: id, Note: "scan failed: " + err.Error()}
		}
		report.Companies = append(report.Companies, cr)
	}

	metrics.RetentionScanDuration.Observe(s.now().Sub(start).Seconds())
	metrics.RetentionCompaniesScanned.Add(float64(len(report.Companies)))
	return report, nil
}

func (s *Scanner) scanCompany(ctx context.Context, companyID string, apply bool) (CompanyReport, error) {
	settings, err := s.store.GetRetentionSettings(ctx, companyID)
	if err != nil {
		return CompanyReport{}, err
	}

	report := CompanyReport{CompanyID: companyID, Mode: settings.Mode}
	if settings.Mode == "off" {
		report.Note = "retention mode off"
		return report, nil
	}

	now := s.now().UTC()
	report.SubmissionsCutoff = now.AddDate(0, 0, -daysOrDefault(settings.SubmissionsDays, s.defaults.DefaultSubmissionDays))
	report.AlertsCutoff = now.AddDate(0, 0, -daysOrDefault(settings.AlertsDays, s.defaults.DefaultAlertDays))

	report.SubmissionsCandidates, err = s.store.CountRowsOlderThan(ctx, submissionsTable, companyID, report.SubmissionsCutoff)
	if err != nil {
		return CompanyReport{}, err
	}
	metrics.RetentionRecordsFlagged.WithLabelValues("submissions").Add(float64(report.SubmissionsCandidates))

	for _, table := range alertTables {
		n, err := s.store.CountRowsOlderThan(ctx, table, companyID, report.AlertsCutoff)
		if err != nil {
			return CompanyReport{}, err
		}
		report.AlertsCandidates += n
	}
	metrics.RetentionRecordsFlagged.WithLabelValues("alerts").Add(float64(report.AlertsCandidates))

	if apply {
		report.Note = "apply requested but deletion is not implemented; scan remained read-only"
	}
	return report, nil
}

// daysOrDefault guards against unset or nonsense windows: a zero or negative
// day count falls back to the default instead of meaning "keep nothing" or
// "keep forever".
func daysOrDefault(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	return days
}
