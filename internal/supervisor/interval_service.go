// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package supervisor

import (
	"context"
	"time"

	"github.com/bibleos/ark/internal/logging"
)

// IntervalService runs a job on a fixed interval under supervision. A
// failing run is logged and the loop keeps ticking; only a panic (caught by
// suture) restarts the service. The first run happens one interval after
// start so that a crash-looping job cannot hammer the database.
type IntervalService struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// NewIntervalService wraps a job function as a supervised interval loop.
func NewIntervalService(name string, interval time.Duration, run func(ctx context.Context) error) *IntervalService {
	return &IntervalService{name: name, interval: interval, run: run}
}

// Serve implements suture.Service.
func (s *IntervalService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Ctx(ctx).Info().
		Str("job", s.name).
		Dur("interval", s.interval).
		Msg("Interval job started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				logging.Ctx(ctx).Error().Err(err).Str("job", s.name).Msg("Interval job run failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *IntervalService) String() string {
	return s.name
}
