// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bibleos/ark/internal/metrics"
)

// RetentionSettings are the per-company retention knobs, stored as rows in
// company_settings. Zero values mean "unset"; the scanner applies defaults.
type RetentionSettings struct {
	Mode            string
	SubmissionsDays int
	AlertsDays      int
	ExportsDays     int
}

// GetRetentionSettings loads the retention keys for one company. Missing
// keys are left at their zero value; unparseable day counts are treated as
// unset rather than failing the scan.
func (s *Store) GetRetentionSettings(ctx context.Context, companyID string) (settings RetentionSettings, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "company_settings", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT key, value FROM company_settings
		WHERE company_id = $1 AND key LIKE 'retention_%'`, companyID)
	if err != nil {
		return RetentionSettings{}, fmt.Errorf("load retention settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return RetentionSettings{}, err
		}
		switch key {
		case "retention_mode":
			settings.Mode = value
		case "retention_submissions_days":
			settings.SubmissionsDays, _ = strconv.Atoi(value)
		case "retention_alerts_days":
			settings.AlertsDays, _ = strconv.Atoi(value)
		case "retention_exports_days":
			settings.ExportsDays, _ = strconv.Atoi(value)
		}
	}
	return settings, rows.Err()
}

// ListRetentionCompanyIDs returns every company that has retention
// configured at all, which is the "all companies" scope of a scan.
func (s *Store) ListRetentionCompanyIDs(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "company_settings", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT company_id FROM company_settings
		WHERE key = 'retention_mode'
		ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list retention companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRowsOlderThan counts tenant rows created before the cutoff. Count
// only: the scanner has no delete path, so this query is the whole of its
// database footprint per table.
func (s *Store) CountRowsOlderThan(ctx context.Context, tableName, companyID string, cutoff time.Time) (count int64, err error) {
	table, err := s.graph.Lookup(tableName)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("count", tableName, time.Since(start), err) }()

	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1 AND created_at < $2",
		quoteIdent(table.Name), quoteIdent(table.ScopeColumn))
	if err := s.pool.QueryRow(ctx, sql, companyID, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count old rows in %s: %w", tableName, err)
	}
	return count, nil
}
