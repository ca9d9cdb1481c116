// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ark/config.yaml",
	"/etc/ark/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied.
// These are layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8090,
			Host:              "0.0.0.0",
			Timeout:           120 * time.Second, // full-tenant exports can be slow
			Environment:       "development",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Database: DatabaseConfig{
			URL:            "",
			MaxConns:       10,
			MinConns:       2,
			ConnectTimeout: 10 * time.Second,
			RunMigrations:  true,
		},
		Storage: StorageConfig{
			Endpoint:        "", // empty = AWS default endpoint resolution
			Region:          "us-east-1",
			Bucket:          "",
			AccessKeyID:     "",
			SecretAccessKey: "",
			ForcePathStyle:  true, // MinIO-compatible default
			UploadAttempts:  4,
			UploadBackoff:   time.Second,
		},
		Email: EmailConfig{
			Enabled:       false, // opt-in; reminders degrade to notification rows only
			ServerURL:     "https://api.postmarkapp.com",
			APIToken:      "",
			FromAddress:   "",
			Timeout:       10 * time.Second,
			RatePerSecond: 10,
			RateBurst:     20,
		},
		Backup: BackupConfig{
			MaxRowsPerTable:    10000,
			CheckpointPath:     "/data/ark/checkpoints",
			CheckpointInMemory: false,
		},
		Retention: RetentionConfig{
			DefaultSubmissionDays: 365,
			DefaultAlertDays:      180,
		},
		Reminders: RemindersConfig{
			Cooldown:        48 * time.Hour,
			LeadWindow:      30 * 24 * time.Hour,
			EscalationAfter: 30 * 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Secret:             "",
			Enabled:            false, // external cron hits the HTTP endpoints by default
			SOPInterval:        time.Hour,
			ExitSurveyInterval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The result is validated before return.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings; YAML values pass through.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment entries cannot
// pollute the configuration.
//
// Examples:
//   - DATABASE_URL -> database.url
//   - S3_BUCKET -> storage.bucket
//   - SCHEDULER_SECRET -> scheduler.secret
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_port":          "server.port",
		"http_host":          "server.host",
		"http_timeout":       "server.timeout",
		"environment":        "server.environment",
		"rate_limit_reqs":    "server.rate_limit_reqs",
		"rate_limit_window":  "server.rate_limit_window",
		"disable_rate_limit": "server.rate_limit_disabled",
		"cors_origins":       "server.cors_origins",

		// Database
		"database_url":             "database.url",
		"database_max_conns":       "database.max_conns",
		"database_min_conns":       "database.min_conns",
		"database_connect_timeout": "database.connect_timeout",
		"database_run_migrations":  "database.run_migrations",

		// Object storage
		"s3_endpoint":          "storage.endpoint",
		"s3_region":            "storage.region",
		"s3_bucket":            "storage.bucket",
		"s3_access_key_id":     "storage.access_key_id",
		"s3_secret_access_key": "storage.secret_access_key",
		"s3_force_path_style":  "storage.force_path_style",
		"s3_upload_attempts":   "storage.upload_attempts",
		"s3_upload_backoff":    "storage.upload_backoff",

		// Email
		"email_enabled":         "email.enabled",
		"email_server_url":      "email.server_url",
		"postmark_api_token":    "email.api_token",
		"email_from_address":    "email.from_address",
		"email_timeout":         "email.timeout",
		"email_rate_per_second": "email.rate_per_second",
		"email_rate_burst":      "email.rate_burst",

		// Backup
		"backup_max_rows_per_table":   "backup.max_rows_per_table",
		"backup_checkpoint_path":      "backup.checkpoint_path",
		"backup_checkpoint_in_memory": "backup.checkpoint_in_memory",

		// Retention
		"retention_default_submission_days": "retention.default_submission_days",
		"retention_default_alert_days":      "retention.default_alert_days",

		// Reminders
		"reminders_cooldown":         "reminders.cooldown",
		"reminders_lead_window":      "reminders.lead_window",
		"reminders_escalation_after": "reminders.escalation_after",

		// Scheduler
		"scheduler_secret":               "scheduler.secret",
		"scheduler_enabled":              "scheduler.enabled",
		"scheduler_sop_interval":         "scheduler.sop_interval",
		"scheduler_exit_survey_interval": "scheduler.exit_survey_interval",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// ARK_ prefixed variables map positionally: ARK_STORAGE_BUCKET -> storage.bucket
	if section, rest, ok := strings.Cut(strings.TrimPrefix(key, "ark_"), "_"); ok && strings.HasPrefix(key, "ark_") {
		return section + "." + rest
	}

	return ""
}
