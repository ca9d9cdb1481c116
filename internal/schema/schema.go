// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package schema declares the tenant table graph: every company-scoped table,
// its scope column, and its foreign-key parents. Delete and insert orders for
// restores derive from the graph by topological sort instead of hand-written
// lists, so adding a table means adding one declaration.
//
// The registry doubles as an identifier allowlist: SQL is only ever generated
// against names present here. A table not in the registry is never queried.
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTable marks a lookup for a name outside the registry. Callers
// must treat such names as unqueryable.
var ErrUnknownTable = errors.New("table is not in the registry")

// Table describes one tenant-scoped table.
type Table struct {
	// Name is the PostgreSQL table name.
	Name string

	// ScopeColumn is the column carrying the tenant ID. Every table uses
	// company_id except companies itself, which is scoped by id.
	ScopeColumn string

	// Parents lists tables this one references by foreign key. The implicit
	// companies edge is omitted; it is shared by every table.
	Parents []string

	// HasSampleFlag records whether the table carries an is_sample column.
	// Exports still fall back to an unflagged query if the live schema
	// disagrees.
	HasSampleFlag bool

	// Domain groups tables for reporting (core, work, crm, finance, donor,
	// lms, workflow, coaching, support).
	Domain string
}

// CompaniesTable is the tenant root. It is exported and upserted like any
// other table but never deleted.
const CompaniesTable = "companies"

// Graph is a validated set of tables with derived orderings.
type Graph struct {
	tables  []Table
	byName  map[string]int
	deleteO []string
	insertO []string
}

// NewGraph validates the declarations and precomputes orderings.
// It fails on duplicate names, unknown parents, missing scope columns, and
// foreign-key cycles.
func NewGraph(tables []Table) (*Graph, error) {
	g := &Graph{
		tables: tables,
		byName: make(map[string]int, len(tables)),
	}

	for i, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table at index %d has empty name", i)
		}
		if _, dup := g.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		if t.ScopeColumn == "" {
			return nil, fmt.Errorf("table %q has no scope column", t.Name)
		}
		if t.Name == CompaniesTable && t.ScopeColumn != "id" {
			return nil, fmt.Errorf("companies must be scoped by id, got %q", t.ScopeColumn)
		}
		g.byName[t.Name] = i
	}

	if _, ok := g.byName[CompaniesTable]; !ok {
		return nil, fmt.Errorf("registry must include %q", CompaniesTable)
	}

	for _, t := range tables {
		for _, p := range t.Parents {
			if _, ok := g.byName[p]; !ok {
				return nil, fmt.Errorf("table %q references unknown parent %q", t.Name, p)
			}
			if p == t.Name {
				return nil, fmt.Errorf("table %q references itself", t.Name)
			}
		}
	}

	insertOrder, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.insertO = insertOrder

	// Delete order is the reverse of insert order (children before parents),
	// with the tenant root excluded: the companies row is never deleted.
	g.deleteO = make([]string, 0, len(insertOrder)-1)
	for i := len(insertOrder) - 1; i >= 0; i-- {
		if insertOrder[i] != CompaniesTable {
			g.deleteO = append(g.deleteO, insertOrder[i])
		}
	}

	return g, nil
}

// topoSort orders tables parents-first using Kahn's algorithm. Ties break by
// declaration order so the result is deterministic.
func (g *Graph) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.tables))
	children := make(map[string][]string, len(g.tables))

	for _, t := range g.tables {
		indegree[t.Name] += 0
		for _, p := range t.Parents {
			indegree[t.Name]++
			children[p] = append(children[p], t.Name)
		}
	}

	var ready []string
	for _, t := range g.tables {
		if indegree[t.Name] == 0 {
			ready = append(ready, t.Name)
		}
	}

	order := make([]string, 0, len(g.tables))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return g.byName[ready[i]] < g.byName[ready[j]]
		})
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, c := range children[name] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(order) != len(g.tables) {
		remaining := make([]string, 0)
		for name, d := range indegree {
			if d > 0 {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, fmt.Errorf("foreign-key cycle involving tables %v", remaining)
	}

	return order, nil
}

// Lookup returns the declaration for a table name, or ErrUnknownTable for
// names outside the registry. Those names are never queried.
func (g *Graph) Lookup(name string) (Table, error) {
	i, ok := g.byName[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return g.tables[i], nil
}

// ExportOrder returns all tables in declaration order, companies first by
// convention of the registry.
func (g *Graph) ExportOrder() []Table {
	out := make([]Table, len(g.tables))
	copy(out, g.tables)
	return out
}

// DeleteOrder returns tables children-first, excluding companies.
func (g *Graph) DeleteOrder() []Table {
	return g.resolve(g.deleteO)
}

// InsertOrder returns tables parents-first, including companies.
func (g *Graph) InsertOrder() []Table {
	return g.resolve(g.insertO)
}

func (g *Graph) resolve(names []string) []Table {
	out := make([]Table, len(names))
	for i, name := range names {
		out[i] = g.tables[g.byName[name]]
	}
	return out
}

// Len returns the number of registered tables.
func (g *Graph) Len() int {
	return len(g.tables)
}
