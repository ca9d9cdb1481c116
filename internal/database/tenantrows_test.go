// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package database

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bibleos/ark/internal/schema"
)

func TestBuildSelectSQL(t *testing.T) {
	t.Parallel()

	tasks := schema.Table{Name: "tasks", ScopeColumn: "company_id", HasSampleFlag: true}
	companies := schema.Table{Name: "companies", ScopeColumn: "id"}

	tests := []struct {
		name         string
		table        schema.Table
		sampleFilter bool
		want         string
	}{
		{
			name:         "with sample filter",
			table:        tasks,
			sampleFilter: true,
			want:         `SELECT * FROM "tasks" WHERE "company_id" = $1 AND is_sample IS NOT TRUE LIMIT 11`,
		},
		{
			name:         "without sample filter",
			table:        tasks,
			sampleFilter: false,
			want:         `SELECT * FROM "tasks" WHERE "company_id" = $1 LIMIT 11`,
		},
		{
			name:         "companies scoped by id",
			table:        companies,
			sampleFilter: false,
			want:         `SELECT * FROM "companies" WHERE "id" = $1 LIMIT 11`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := buildSelectSQL(tt.table, tt.sampleFilter, 10); got != tt.want {
				t.Errorf("buildSelectSQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDeleteSQL(t *testing.T) {
	t.Parallel()

	got := buildDeleteSQL(schema.Table{Name: "tasks", ScopeColumn: "company_id"})
	want := `DELETE FROM "tasks" WHERE "company_id" = $1`
	if got != want {
		t.Errorf("buildDeleteSQL = %q, want %q", got, want)
	}
}

func TestBuildUpsertSQL(t *testing.T) {
	t.Parallel()

	t.Run("two rows three columns", func(t *testing.T) {
		t.Parallel()
		got := buildUpsertSQL("tasks", []string{"id", "name", "status"}, 2)
		want := `INSERT INTO "tasks" ("id", "name", "status") VALUES ` +
			`($1, $2, $3), ($4, $5, $6) ` +
			`ON CONFLICT (id) DO UPDATE SET "name" = EXCLUDED."name", "status" = EXCLUDED."status"`
		if got != want {
			t.Errorf("buildUpsertSQL =\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("id-only rows fall back to do nothing", func(t *testing.T) {
		t.Parallel()
		got := buildUpsertSQL("tags", []string{"id"}, 1)
		want := `INSERT INTO "tags" ("id") VALUES ($1) ON CONFLICT (id) DO NOTHING`
		if got != want {
			t.Errorf("buildUpsertSQL = %q, want %q", got, want)
		}
	})

	t.Run("quotes hostile column names", func(t *testing.T) {
		t.Parallel()
		got := buildUpsertSQL("tasks", []string{`bad"col`, "id"}, 1)
		if !strings.Contains(got, `"bad""col"`) {
			t.Errorf("column not sanitized: %q", got)
		}
	})
}

func TestCollectColumns(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"id": "1", "name": "a"},
		{"id": "2", "status": "open"},
	}
	got := collectColumns(rows)
	want := []string{"id", "name", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("collectColumns = %v, want %v", got, want)
	}
}

func TestUpsertChunkSizing(t *testing.T) {
	t.Parallel()

	// A wide table must never produce a statement over the parameter limit.
	cols := 40
	chunk := maxQueryParams / cols
	if chunk*cols > 65535 {
		t.Errorf("chunk of %d rows x %d cols exceeds the wire limit", chunk, cols)
	}
	if chunk < 1 {
		t.Error("chunk size must be at least one row")
	}
}

func TestIsUndefinedColumn(t *testing.T) {
	t.Parallel()

	undefined := &pgconn.PgError{Code: "42703"}
	if !IsUndefinedColumn(fmt.Errorf("query: %w", undefined)) {
		t.Error("wrapped 42703 should be recognized")
	}
	if IsUndefinedColumn(&pgconn.PgError{Code: "42P01"}) {
		t.Error("undefined table must not be treated as undefined column")
	}
	if IsUndefinedColumn(errors.New("plain")) {
		t.Error("non-pg error must not match")
	}
}
