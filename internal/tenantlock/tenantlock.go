// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package tenantlock serializes backup and restore operations per company.
// Two concurrent restores of one tenant would interleave their delete and
// insert phases; the keyed try-lock turns the second request into an
// immediate ErrBusy instead.
package tenantlock

import (
	"errors"
	"sync"
)

// ErrBusy is returned when another operation already holds the company lock.
var ErrBusy = errors.New("another backup or restore is running for this company")

// Keyed is a set of non-blocking per-key locks.
type Keyed struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// New returns an empty lock set.
func New() *Keyed {
	return &Keyed{held: make(map[string]struct{})}
}

// TryAcquire takes the lock for key, or returns ErrBusy without blocking.
// The returned release function is idempotent.
func (k *Keyed) TryAcquire(key string) (release func(), err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.held[key]; busy {
		return nil, ErrBusy
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, nil
}

// Held reports whether the key is currently locked. Intended for health
// reporting; by the time the caller acts the answer may be stale.
func (k *Keyed) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, busy := k.held[key]
	return busy
}
