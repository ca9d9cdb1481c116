// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/metrics"
	"github.com/bibleos/ark/internal/schema"
)

// maxQueryParams keeps multi-row upserts under the Postgres wire protocol
// limit of 65535 bind parameters per statement.
const maxQueryParams = 60000

// pgUndefinedColumn is the Postgres error code for a missing column.
const pgUndefinedColumn = "42703"

// SelectTenantRows reads every row of one tenant table scoped to a company,
// capped at the configured row limit. Tables flagged with a sample column are
// first queried with sample rows excluded; if that query fails the read is
// retried once without the filter, still scoped by the tenant column. The
// table must exist in the registry: scoping is never optional.
func (s *Store) SelectTenantRows(ctx context.Context, tableName, companyID string) (rows []map[string]any, truncated bool, err error) {
	table, err := s.graph.Lookup(tableName)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", tableName, time.Since(start), err) }()

	if table.HasSampleFlag {
		rows, truncated, err = s.selectRows(ctx, buildSelectSQL(table, true, s.maxRows), companyID)
		if err == nil {
			return rows, truncated, nil
		}
		evt := logging.Ctx(ctx).Warn()
		if IsUndefinedColumn(err) {
			evt = logging.Ctx(ctx).Debug()
		}
		evt.Err(err).
			Str("table", tableName).
			Msg("Filtered tenant read failed, retrying without sample filter")
	}

	return s.selectRows(ctx, buildSelectSQL(table, false, s.maxRows), companyID)
}

func (s *Store) selectRows(ctx context.Context, sql, companyID string) ([]map[string]any, bool, error) {
	pgRows, err := s.pool.Query(ctx, sql, companyID)
	if err != nil {
		return nil, false, err
	}
	defer pgRows.Close()

	var out []map[string]any
	for pgRows.Next() {
		values, err := pgRows.Values()
		if err != nil {
			return nil, false, fmt.Errorf("read row values: %w", err)
		}
		row := make(map[string]any, len(values))
		for i, fd := range pgRows.FieldDescriptions() {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := pgRows.Err(); err != nil {
		return nil, false, err
	}

	// The query fetches one row past the cap so truncation is detectable.
	if len(out) > s.maxRows {
		return out[:s.maxRows], true, nil
	}
	return out, false, nil
}

// DeleteTenantRows removes every row of one tenant table scoped to a
// company. The companies row itself is never deleted.
func (s *Store) DeleteTenantRows(ctx context.Context, tableName, companyID string) (deleted int64, err error) {
	table, err := s.graph.Lookup(tableName)
	if err != nil {
		return 0, err
	}
	if table.Name == schema.CompaniesTable {
		return 0, fmt.Errorf("refusing to delete from %s", schema.CompaniesTable)
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete", tableName, time.Since(start), err) }()

	tag, err := s.pool.Exec(ctx, buildDeleteSQL(table), companyID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertRows writes rows into one tenant table keyed by id, so replaying the
// same rows is idempotent. Rows are split into chunks that fit the bind
// parameter limit; a failure in a later chunk leaves earlier chunks applied,
// matching the per-table best-effort restore contract.
func (s *Store) UpsertRows(ctx context.Context, tableName string, rows []map[string]any) (inserted int, err error) {
	if _, err := s.graph.Lookup(tableName); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	cols := collectColumns(rows)
	if !containsString(cols, "id") {
		return 0, fmt.Errorf("rows for %s carry no id column", tableName)
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", tableName, time.Since(start), err) }()

	chunkSize := maxQueryParams / len(cols)
	if chunkSize < 1 {
		chunkSize = 1
	}

	for offset := 0; offset < len(rows); offset += chunkSize {
		end := offset + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[offset:end]

		sql := buildUpsertSQL(tableName, cols, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for _, row := range chunk {
			for _, col := range cols {
				args = append(args, row[col]) // absent keys insert NULL
			}
		}

		if _, err = s.pool.Exec(ctx, sql, args...); err != nil {
			return inserted, fmt.Errorf("upsert %s rows %d-%d: %w", tableName, offset, end-1, err)
		}
		inserted += len(chunk)
	}
	return inserted, nil
}

// IsUndefinedColumn reports whether err is Postgres complaining about a
// column that does not exist.
func IsUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn
}

// buildSelectSQL renders the tenant read for one registry table. The limit
// is one past the cap so the caller can detect truncation.
func buildSelectSQL(table schema.Table, sampleFilter bool, maxRows int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(table.Name))
	b.WriteString(" WHERE ")
	b.WriteString(quoteIdent(table.ScopeColumn))
	b.WriteString(" = $1")
	if sampleFilter {
		b.WriteString(" AND is_sample IS NOT TRUE")
	}
	fmt.Fprintf(&b, " LIMIT %d", maxRows+1)
	return b.String()
}

func buildDeleteSQL(table schema.Table) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdent(table.Name), quoteIdent(table.ScopeColumn))
}

// buildUpsertSQL renders a multi-row INSERT ... ON CONFLICT (id) DO UPDATE
// for the given column set and row count.
func buildUpsertSQL(tableName string, cols []string, rowCount int) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")

	param := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", param)
			param++
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
	first := true
	for i, col := range cols {
		if col == "id" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(quoted[i])
		b.WriteString(" = EXCLUDED.")
		b.WriteString(quoted[i])
	}
	if first {
		// id-only rows have nothing to update; keep the statement valid.
		return strings.TrimSuffix(b.String(), " ON CONFLICT (id) DO UPDATE SET ") +
			" ON CONFLICT (id) DO NOTHING"
	}
	return b.String()
}

// collectColumns returns the sorted union of keys across all rows, so every
// chunk shares one statement shape.
func collectColumns(rows []map[string]any) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for col := range row {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// quoteIdent double-quotes an SQL identifier. Table names always come from
// the registry; column names can come from artifact payloads and are quoted
// defensively.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
