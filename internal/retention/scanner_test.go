// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/database"
)

type fakeStore struct {
	settings  map[string]database.RetentionSettings
	counts    map[string]int64 // "table:company" -> count
	countErrs map[string]error
	listErr   error
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:  map[string]database.RetentionSettings{},
		counts:    map[string]int64{},
		countErrs: map[string]error{},
	}
}

func (f *fakeStore) GetRetentionSettings(_ context.Context, companyID string) (database.RetentionSettings, error) {
	return f.settings[companyID], nil
}

func (f *fakeStore) ListRetentionCompanyIDs(_ context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for id := range f.settings {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) CountRowsOlderThan(_ context.Context, table, companyID string, _ time.Time) (int64, error) {
	key := table + ":" + companyID
	f.calls = append(f.calls, key)
	if err := f.countErrs[key]; err != nil {
		return 0, err
	}
	return f.counts[key], nil
}

func testDefaults() config.RetentionConfig {
	return config.RetentionConfig{DefaultSubmissionDays: 365, DefaultAlertDays: 180}
}

func TestCapabilityIsReadOnly(t *testing.T) {
	t.Parallel()

	s := NewScanner(newFakeStore(), testDefaults())
	if s.Capability() != CapabilityReadOnly {
		t.Errorf("capability = %s, want %s", s.Capability(), CapabilityReadOnly)
	}
}

func TestScanSingleCompany(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.settings["c1"] = database.RetentionSettings{Mode: "standard", SubmissionsDays: 30, AlertsDays: 10}
	store.counts["form_submissions:c1"] = 12
	store.counts["sop_review_alerts:c1"] = 3
	store.counts["notifications:c1"] = 4

	s := NewScanner(store, testDefaults())
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	report, err := s.Scan(context.Background(), "c1", true, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Companies) != 1 {
		t.Fatalf("got %d company reports, want 1", len(report.Companies))
	}

	cr := report.Companies[0]
	if cr.SubmissionsCandidates != 12 {
		t.Errorf("submissions candidates = %d, want 12", cr.SubmissionsCandidates)
	}
	if cr.AlertsCandidates != 7 {
		t.Errorf("alerts candidates = %d, want 7 (both alert tables)", cr.AlertsCandidates)
	}
	if wantCutoff := fixed.AddDate(0, 0, -30); !cr.SubmissionsCutoff.Equal(wantCutoff) {
		t.Errorf("submissions cutoff = %v, want %v", cr.SubmissionsCutoff, wantCutoff)
	}
	if wantCutoff := fixed.AddDate(0, 0, -10); !cr.AlertsCutoff.Equal(wantCutoff) {
		t.Errorf("alerts cutoff = %v, want %v", cr.AlertsCutoff, wantCutoff)
	}
	if cr.Applied {
		t.Error("applied must always be false")
	}
}

func TestScanDefaultsForUnsetWindows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings database.RetentionSettings
	}{
		{"unset", database.RetentionSettings{Mode: "standard"}},
		{"negative", database.RetentionSettings{Mode: "standard", SubmissionsDays: -5, AlertsDays: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			store.settings["c1"] = tt.settings

			s := NewScanner(store, testDefaults())
			fixed := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
			s.now = func() time.Time { return fixed }

			report, err := s.Scan(context.Background(), "c1", true, false)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			cr := report.Companies[0]
			if want := fixed.AddDate(0, 0, -365); !cr.SubmissionsCutoff.Equal(want) {
				t.Errorf("submissions cutoff = %v, want default 365d (%v)", cr.SubmissionsCutoff, want)
			}
			if want := fixed.AddDate(0, 0, -180); !cr.AlertsCutoff.Equal(want) {
				t.Errorf("alerts cutoff = %v, want default 180d (%v)", cr.AlertsCutoff, want)
			}
		})
	}
}

func TestScanModeOffShortCircuits(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.settings["c1"] = database.RetentionSettings{Mode: "off"}

	s := NewScanner(store, testDefaults())
	report, err := s.Scan(context.Background(), "c1", true, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	cr := report.Companies[0]
	if cr.SubmissionsCandidates != 0 || cr.AlertsCandidates != 0 {
		t.Errorf("off mode must report zero candidates: %+v", cr)
	}
	if len(store.calls) != 0 {
		t.Errorf("off mode ran %d count queries, want 0", len(store.calls))
	}
	if cr.Note == "" {
		t.Error("off mode should carry an explanatory note")
	}
}

func TestScanApplyIsNeverActedOn(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.settings["c1"] = database.RetentionSettings{Mode: "standard"}
	store.counts["form_submissions:c1"] = 99

	s := NewScanner(store, testDefaults())
	report, err := s.Scan(context.Background(), "c1", false, true)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if !report.ApplyRequested {
		t.Error("apply_requested should echo the flag")
	}
	cr := report.Companies[0]
	if cr.Applied {
		t.Error("applied must be false even when apply was requested")
	}
	if cr.Note == "" {
		t.Error("an ignored apply request should be noted")
	}
	for _, call := range store.calls {
		// Every database touch is a count; the fake would have no delete
		// method to call even if the scanner tried.
		if call == "" {
			t.Fatal("unexpected empty call")
		}
	}
}

func TestScanAllCompaniesSurvivesOneFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.settings["c1"] = database.RetentionSettings{Mode: "standard"}
	store.settings["c2"] = database.RetentionSettings{Mode: "standard"}
	store.countErrs["form_submissions:c1"] = errors.New("relation gone")

	s := NewScanner(store, testDefaults())
	report, err := s.Scan(context.Background(), "", true, false)
	if err != nil {
		t.Fatalf("fleet scan must not abort on one company: %v", err)
	}
	if len(report.Companies) != 2 {
		t.Fatalf("got %d company reports, want 2", len(report.Companies))
	}

	failures := 0
	for _, cr := range report.Companies {
		if cr.Note != "" && cr.CompanyID == "c1" {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected the failed company to carry an error note")
	}
}

func TestScanSingleCompanyPropagatesFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.settings["c1"] = database.RetentionSettings{Mode: "standard"}
	store.countErrs["form_submissions:c1"] = errors.New("relation gone")

	s := NewScanner(store, testDefaults())
	if _, err := s.Scan(context.Background(), "c1", true, false); err == nil {
		t.Fatal("single-company scan should surface the failure")
	}
}
