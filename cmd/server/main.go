// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package main is the entry point for the Ark server.
//
// Ark is the BibleOS platform's tenant lifecycle sidecar. It exports a
// company's rows across the platform schema into a JSON artifact in
// S3-compatible object storage, restores a company from such an artifact,
// scans stored retention settings against row ages (read-only), and runs
// the SOP review and exit-survey reminder sweeps.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml, env)
//  2. Database: pgx connection pool against the shared BibleOS PostgreSQL
//  3. Migrations: goose-embedded bookkeeping tables (optional)
//  4. Checkpoints: Badger store for resumable exports
//  5. Object storage: S3-compatible artifact bucket
//  6. Domain services: exporter, restorer, retention scanner, sweeper
//  7. Supervisor tree: HTTP server plus optional scheduler loops
//
// # Scheduling
//
// The retention scan and reminder sweeps are normally triggered by an
// external cron service authenticated with the x-scheduler-secret header.
// Setting SCHEDULER_ENABLED=true instead runs the sweeps on in-process
// interval loops under the supervisor, for deployments without a cron.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests (10s timeout), and
// closes the checkpoint store and database pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bibleos/ark/internal/api"
	"github.com/bibleos/ark/internal/backup"
	"github.com/bibleos/ark/internal/checkpoint"
	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/mailer"
	"github.com/bibleos/ark/internal/reminders"
	"github.com/bibleos/ark/internal/retention"
	"github.com/bibleos/ark/internal/schema"
	"github.com/bibleos/ark/internal/storage"
	"github.com/bibleos/ark/internal/supervisor"
	"github.com/bibleos/ark/internal/tenantlock"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The default logger carries config errors; logging is not yet configured.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Ark")

	graph := schema.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	db, err := database.New(connectCtx, cfg.Database, graph, cfg.Backup.MaxRowsPerTable)
	connectCancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	logging.Info().Msg("Database pool established")

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		logging.Info().Msg("Migrations applied")
	}

	checkpoints, err := checkpoint.Open(cfg.Backup.CheckpointPath, cfg.Backup.CheckpointInMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open checkpoint store")
	}
	defer func() {
		if err := checkpoints.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}()
	logging.Info().
		Str("path", cfg.Backup.CheckpointPath).
		Bool("in_memory", cfg.Backup.CheckpointInMemory).
		Msg("Checkpoint store opened")

	objects := storage.New(cfg.Storage)
	logging.Info().
		Str("bucket", cfg.Storage.Bucket).
		Str("endpoint", cfg.Storage.Endpoint).
		Msg("Object storage configured")

	mail := mailer.New(cfg.Email)
	if cfg.Email.Enabled {
		logging.Info().Str("from", cfg.Email.FromAddress).Msg("Email delivery enabled")
	} else {
		logging.Info().Msg("Email delivery disabled; reminders write notification rows only")
	}

	locks := tenantlock.New()
	exporter := backup.NewExporter(db, db, objects, checkpoints, graph, locks)
	restorer := backup.NewRestorer(db, db, objects, graph, locks)
	scanner := retention.NewScanner(db, cfg.Retention)
	sweeper := reminders.NewSweeper(db, mail, cfg.Reminders)

	handlers := api.NewHandlers(exporter, restorer, scanner, sweeper, db, db, version)
	router := api.NewRouter(handlers, cfg.Server, cfg.Scheduler.Secret)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Scheduler.Enabled {
		tree.AddJobService(supervisor.NewIntervalService(
			"sop-reminder-sweep", cfg.Scheduler.SOPInterval,
			func(ctx context.Context) error {
				_, err := sweeper.RunSOPSweep(ctx, false)
				return err
			}))
		tree.AddJobService(supervisor.NewIntervalService(
			"exit-survey-sweep", cfg.Scheduler.ExitSurveyInterval,
			func(ctx context.Context) error {
				_, err := sweeper.RunExitSurveySweepAll(ctx, false)
				return err
			}))
		logging.Info().
			Dur("sop_interval", cfg.Scheduler.SOPInterval).
			Dur("exit_survey_interval", cfg.Scheduler.ExitSurveyInterval).
			Msg("In-process scheduler loops enabled")
	} else {
		logging.Info().Msg("In-process scheduler disabled; sweeps run via authenticated HTTP triggers")
	}

	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Ark stopped gracefully")
}
