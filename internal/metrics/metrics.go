// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package metrics provides Prometheus instrumentation for backup exports,
// restores, retention scans, reminder sweeps, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Export Metrics
	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ark_backup_duration_seconds",
			Help:    "Duration of full-tenant export operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // full exports can take minutes
		},
	)

	BackupRecordsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_backup_records_exported_total",
			Help: "Total number of rows written to backup artifacts",
		},
	)

	BackupTablesTruncated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_backup_tables_truncated_total",
			Help: "Total number of table exports capped at the per-table row limit",
		},
	)

	BackupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_backup_errors_total",
			Help: "Total number of failed export operations",
		},
		[]string{"stage"}, // "export", "encode", "upload", "record"
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ark_backup_last_success_timestamp",
			Help: "Unix timestamp of the last successful export",
		},
	)

	// Restore Metrics
	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ark_restore_duration_seconds",
			Help:    "Duration of restore operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RestoreRecordsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_restore_records_inserted_total",
			Help: "Total number of rows inserted during restores",
		},
	)

	RestoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_restore_errors_total",
			Help: "Total number of failed restore operations",
		},
		[]string{"stage"}, // "fetch", "decode", "version", "delete", "insert"
	)

	TenantLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_tenant_lock_contention_total",
			Help: "Total number of requests rejected because the company lock was held",
		},
	)

	// Retention Scanner Metrics
	RetentionScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ark_retention_scan_duration_seconds",
			Help:    "Duration of retention scans in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetentionCompaniesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_retention_companies_scanned_total",
			Help: "Total number of companies examined by retention scans",
		},
	)

	RetentionRecordsFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_retention_records_flagged_total",
			Help: "Total number of records past their retention cutoff (report only)",
		},
		[]string{"class"}, // "submissions", "alerts"
	)

	// Reminder Metrics
	ReminderRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_reminder_run_duration_seconds",
			Help:    "Duration of reminder sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // "sop_review", "exit_survey"
	)

	RemindersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_reminders_created_total",
			Help: "Total number of reminder notifications inserted",
		},
		[]string{"kind"},
	)

	EscalationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ark_escalations_created_total",
			Help: "Total number of escalation notifications inserted",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_emails_sent_total",
			Help: "Total number of reminder emails handed to the delivery provider",
		},
		[]string{"outcome"}, // "sent", "failed", "skipped"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_db_query_duration_seconds",
			Help:    "Duration of PostgreSQL queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_db_query_errors_total",
			Help: "Total number of PostgreSQL query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ark_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ark_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ark_api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordBackup records the outcome of one export operation.
func RecordBackup(duration time.Duration, recordsExported int, err error, stage string) {
	BackupDuration.Observe(duration.Seconds())
	BackupRecordsExported.Add(float64(recordsExported))
	if err != nil {
		if stage == "" {
			stage = "export"
		}
		BackupErrors.WithLabelValues(stage).Inc()
		return
	}
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordRestore records the outcome of one restore operation.
func RecordRestore(duration time.Duration, recordsInserted int, err error, stage string) {
	RestoreDuration.Observe(duration.Seconds())
	RestoreRecordsInserted.Add(float64(recordsInserted))
	if err != nil {
		if stage == "" {
			stage = "insert"
		}
		RestoreErrors.WithLabelValues(stage).Inc()
	}
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
