// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package checkpoint records per-table export progress in BadgerDB so an
// interrupted export can resume: tables already checkpointed for a backup ID
// are skipped on the next run. The checkpoint set is cleared only when the
// backup completes; a failed export keeps it so the retry resumes.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const exportKeyPrefix = "export:"

// TableCheckpoint records one completed table export within a backup run.
// Payload carries the table's exported rows (JSON-encoded) so a resumed run
// can rebuild the artifact without re-reading checkpointed tables.
type TableCheckpoint struct {
	Table       string    `json:"table"`
	Rows        int       `json:"rows"`
	Truncated   bool      `json:"truncated"`
	CompletedAt time.Time `json:"completed_at"`
	Payload     []byte    `json:"payload,omitempty"`
}

// Store is a BadgerDB-backed checkpoint store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the checkpoint database at path. With inMemory set
// the store lives only for the process lifetime; exports then lose
// resumability across restarts but tests need no disk.
func Open(path string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func tableKey(backupID, table string) []byte {
	return []byte(exportKeyPrefix + backupID + ":" + table)
}

// MarkTable records that a table finished exporting for the given backup.
func (s *Store) MarkTable(_ context.Context, backupID string, cp TableCheckpoint) error {
	if cp.CompletedAt.IsZero() {
		cp.CompletedAt = time.Now().UTC()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tableKey(backupID, cp.Table), data)
	})
}

// CompletedTables returns the checkpoints recorded for a backup, keyed by
// table name. An unknown backup ID yields an empty map.
func (s *Store) CompletedTables(_ context.Context, backupID string) (map[string]TableCheckpoint, error) {
	out := make(map[string]TableCheckpoint)
	prefix := []byte(exportKeyPrefix + backupID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var cp TableCheckpoint
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cp)
			}); err != nil {
				return fmt.Errorf("decode checkpoint %s: %w", item.Key(), err)
			}
			if cp.Table == "" {
				cp.Table = strings.TrimPrefix(string(item.Key()), string(prefix))
			}
			out[cp.Table] = cp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear removes every checkpoint recorded for a backup. Clearing an unknown
// backup ID is a no-op.
func (s *Store) Clear(_ context.Context, backupID string) error {
	prefix := []byte(exportKeyPrefix + backupID + ":")

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		err := s.db.Update(func(txn *badger.Txn) error {
			err := txn.Delete(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("clear checkpoint %s: %w", key, err)
		}
	}
	return nil
}
