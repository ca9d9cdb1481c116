// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package database provides Postgres access for the service.
//
// Two classes of data live behind the Store. The platform's tenant tables
// (companies, tasks, sops, ...) are externally owned; the Store only reads,
// deletes, and upserts rows in them, and every identifier in that SQL comes
// from the internal/schema registry so a table name that is not declared
// there can never reach the database. The service's own bookkeeping table
// (backup_records) is owned here and managed with goose migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/schema"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps a pgx connection pool with the table graph and the row cap
// applied to tenant exports.
type Store struct {
	pool    *pgxpool.Pool
	graph   *schema.Graph
	maxRows int
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, cfg config.DatabaseConfig, graph *schema.Graph, maxRows int) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Int("tables", graph.Len()).
		Msg("Database pool established")

	return &Store{pool: pool, graph: graph, maxRows: maxRows}, nil
}

// NewWithPool wraps an existing pool, mainly for tests.
func NewWithPool(pool *pgxpool.Pool, graph *schema.Graph, maxRows int) *Store {
	return &Store{pool: pool, graph: graph, maxRows: maxRows}
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Graph exposes the table graph the store was built with.
func (s *Store) Graph() *schema.Graph {
	return s.graph
}
