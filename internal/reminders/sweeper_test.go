// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/mailer"
)

type fakeStore struct {
	sops       []database.DueSOP
	surveys    []database.OverdueExitSurvey
	markers    map[string]database.NotificationMarkers
	contacts   map[string]database.Contact
	escalation []database.Contact
	inserted   []database.Notification
	insertErr  error

	companyIDsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		markers:  map[string]database.NotificationMarkers{},
		contacts: map[string]database.Contact{},
	}
}

func (f *fakeStore) ListDueSOPs(_ context.Context, horizon time.Time) ([]database.DueSOP, error) {
	var out []database.DueSOP
	for _, sop := range f.sops {
		if !sop.NextReviewAt.After(horizon) {
			out = append(out, sop)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOverdueExitSurveys(_ context.Context, companyID string, asOf time.Time) ([]database.OverdueExitSurvey, error) {
	var out []database.OverdueExitSurvey
	for _, sv := range f.surveys {
		if sv.CompanyID == companyID && !sv.DueAt.After(asOf) {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExitSurveyCompanyIDs(_ context.Context) ([]string, error) {
	if f.companyIDsErr != nil {
		return nil, f.companyIDsErr
	}
	seen := map[string]struct{}{}
	var ids []string
	for _, sv := range f.surveys {
		if _, ok := seen[sv.CompanyID]; !ok {
			seen[sv.CompanyID] = struct{}{}
			ids = append(ids, sv.CompanyID)
		}
	}
	return ids, nil
}

func (f *fakeStore) GetNotificationMarkers(_ context.Context, _, entityType, entityID string) (database.NotificationMarkers, error) {
	return f.markers[entityType+":"+entityID], nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n database.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, n)
	return nil
}

func (f *fakeStore) GetEmployeeContact(_ context.Context, _, employeeID string) (database.Contact, error) {
	c, ok := f.contacts[employeeID]
	if !ok {
		return database.Contact{}, errors.New("no such employee")
	}
	return c, nil
}

func (f *fakeStore) ListEscalationContacts(_ context.Context, _ string, _ *string) ([]database.Contact, error) {
	return f.escalation, nil
}

type fakeMailer struct {
	sent    []mailer.Message
	err     error
	enabled bool
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) Enabled() bool { return f.enabled }

func testConfig() config.RemindersConfig {
	return config.RemindersConfig{
		Cooldown:        48 * time.Hour,
		LeadWindow:      30 * 24 * time.Hour,
		EscalationAfter: 30 * 24 * time.Hour,
	}
}

func newTestSweeper(store *fakeStore, mail *fakeMailer, now time.Time) *Sweeper {
	s := NewSweeper(store, mail, testConfig())
	s.now = func() time.Time { return now }
	return s
}

var sweepNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func dueSOP(id string, dueAt time.Time) database.DueSOP {
	owner := "emp-1"
	return database.DueSOP{
		ID: id, CompanyID: "c1", OwnerID: &owner,
		Title: "Safety walkthrough", NextReviewAt: dueAt,
	}
}

func TestSOPSweepRemindsOwner(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{dueSOP("s1", sweepNow.Add(10*24*time.Hour))}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}

	if result.Processed != 1 || result.RemindersCreated != 1 || result.EscalationsCreated != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d markers, want 1", len(store.inserted))
	}
	n := store.inserted[0]
	if n.Kind != database.NotificationKindReminder || n.EntityType != database.EntityTypeSOP || n.EntityID != "s1" {
		t.Errorf("marker = %+v", n)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "owner@example.com" {
		t.Errorf("emails = %+v", mail.sent)
	}
}

func TestSOPSweepRespectsCooldown(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{dueSOP("s1", sweepNow)}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}

	recent := sweepNow.Add(-time.Hour)
	store.markers["sop:s1"] = database.NotificationMarkers{LastReminderAt: &recent}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}
	if result.RemindersCreated != 0 || len(store.inserted) != 0 || len(mail.sent) != 0 {
		t.Errorf("cooldown violated: result=%+v markers=%d emails=%d",
			result, len(store.inserted), len(mail.sent))
	}

	// Past the cooldown the same entity is reminded exactly once more.
	expired := sweepNow.Add(-49 * time.Hour)
	store.markers["sop:s1"] = database.NotificationMarkers{LastReminderAt: &expired}

	result, err = newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep after cooldown: %v", err)
	}
	if result.RemindersCreated != 1 || len(store.inserted) != 1 {
		t.Errorf("expected exactly one new marker: result=%+v markers=%d", result, len(store.inserted))
	}
}

func TestSOPSweepEscalatesDeduplicated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{dueSOP("s1", sweepNow.Add(-31*24*time.Hour))}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}
	// mgr-1 appears twice, the owner is already in the list, and adm-2
	// shares adm-1's email address.
	store.escalation = []database.Contact{
		{ID: "mgr-1", Email: "manager@example.com"},
		{ID: "adm-1", Email: "admin@example.com"},
		{ID: "mgr-1", Email: "manager@example.com"},
		{ID: "emp-1", Email: "owner@example.com"},
		{ID: "adm-2", Email: "admin@example.com"},
	}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}

	if result.EscalationsCreated != 1 || result.RemindersCreated != 0 {
		t.Errorf("result = %+v", result)
	}
	// mgr-1, adm-1, emp-1 — each exactly once.
	if len(store.inserted) != 3 {
		t.Fatalf("inserted %d escalation markers, want 3: %+v", len(store.inserted), store.inserted)
	}
	seen := map[string]int{}
	for _, n := range store.inserted {
		if n.Kind != database.NotificationKindEscalation {
			t.Errorf("marker kind = %s", n.Kind)
		}
		seen[n.RecipientID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("recipient %s notified %d times in one run", id, count)
		}
	}
	if len(mail.sent) != 3 {
		t.Errorf("sent %d emails, want 3", len(mail.sent))
	}
}

func TestSOPSweepDryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{
		dueSOP("s1", sweepNow.Add(10*24*time.Hour)),
		dueSOP("s2", sweepNow.Add(-31*24*time.Hour)),
	}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), true)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}

	if !result.DryRun || result.RemindersCreated != 1 || result.EscalationsCreated != 1 {
		t.Errorf("dry run should report would-be actions: %+v", result)
	}
	if len(store.inserted) != 0 {
		t.Error("dry run wrote markers")
	}
	if len(mail.sent) != 0 {
		t.Error("dry run sent email")
	}
}

func TestSOPSweepEmailFailureKeepsMarker(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{dueSOP("s1", sweepNow)}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}
	mail := &fakeMailer{enabled: true, err: errors.New("provider down")}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}

	// At-least-once: the marker row is durable even though the email failed.
	if result.RemindersCreated != 1 || len(store.inserted) != 1 {
		t.Errorf("marker should outlive the email failure: %+v", result)
	}
	if result.EmailsSent != 0 {
		t.Errorf("emails sent = %d, want 0", result.EmailsSent)
	}
}

func TestSOPSweepMarkerWriteFailureSkipsEntity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.sops = []database.DueSOP{dueSOP("s1", sweepNow)}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "owner@example.com"}
	store.insertErr = errors.New("insert denied")
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunSOPSweep(context.Background(), false)
	if err != nil {
		t.Fatalf("RunSOPSweep: %v", err)
	}
	if result.RemindersCreated != 0 {
		t.Errorf("failed marker write must not count as created: %+v", result)
	}
	if len(mail.sent) != 0 {
		t.Error("no email may go out without a durable marker")
	}
}

func TestExitSurveySweep(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.surveys = []database.OverdueExitSurvey{
		{ID: "x1", CompanyID: "c1", EmployeeID: "emp-9", DueAt: sweepNow.Add(-72 * time.Hour)},
	}
	store.contacts["emp-9"] = database.Contact{ID: "emp-9", Email: "leaver@example.com"}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunExitSurveySweep(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("RunExitSurveySweep: %v", err)
	}

	if result.Processed != 1 || result.RemindersCreated != 1 || result.EscalationsCreated != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(store.inserted) != 1 || store.inserted[0].EntityType != database.EntityTypeExitSurvey {
		t.Errorf("markers = %+v", store.inserted)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "leaver@example.com" {
		t.Errorf("emails = %+v", mail.sent)
	}
}

func TestExitSurveySweepCooldownAndDryRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.surveys = []database.OverdueExitSurvey{
		{ID: "x1", CompanyID: "c1", EmployeeID: "emp-9", DueAt: sweepNow.Add(-72 * time.Hour)},
	}
	store.contacts["emp-9"] = database.Contact{ID: "emp-9", Email: "leaver@example.com"}

	recent := sweepNow.Add(-time.Hour)
	store.markers["exit_survey:x1"] = database.NotificationMarkers{LastReminderAt: &recent}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunExitSurveySweep(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("RunExitSurveySweep: %v", err)
	}
	if result.RemindersCreated != 0 || len(store.inserted) != 0 {
		t.Errorf("cooldown violated: %+v", result)
	}

	// Dry run past the cooldown counts but writes nothing.
	expired := sweepNow.Add(-50 * time.Hour)
	store.markers["exit_survey:x1"] = database.NotificationMarkers{LastReminderAt: &expired}

	result, err = newTestSweeper(store, mail, sweepNow).RunExitSurveySweep(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if result.RemindersCreated != 1 || len(store.inserted) != 0 || len(mail.sent) != 0 {
		t.Errorf("dry run side effects: result=%+v markers=%d emails=%d",
			result, len(store.inserted), len(mail.sent))
	}
}

func TestExitSurveySweepAll(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.surveys = []database.OverdueExitSurvey{
		{ID: "x1", CompanyID: "c1", EmployeeID: "emp-1", DueAt: sweepNow.Add(-72 * time.Hour)},
		{ID: "x2", CompanyID: "c2", EmployeeID: "emp-2", DueAt: sweepNow.Add(-96 * time.Hour)},
	}
	store.contacts["emp-1"] = database.Contact{ID: "emp-1", Email: "one@example.com"}
	store.contacts["emp-2"] = database.Contact{ID: "emp-2", Email: "two@example.com"}
	mail := &fakeMailer{enabled: true}

	result, err := newTestSweeper(store, mail, sweepNow).RunExitSurveySweepAll(context.Background(), false)
	if err != nil {
		t.Fatalf("RunExitSurveySweepAll: %v", err)
	}

	if result.Processed != 2 || result.RemindersCreated != 2 {
		t.Errorf("result = %+v", result)
	}
	if len(mail.sent) != 2 {
		t.Errorf("sent %d emails, want 2", len(mail.sent))
	}

	t.Run("listing failure propagates", func(t *testing.T) {
		broken := newFakeStore()
		broken.companyIDsErr = errors.New("relation gone")
		if _, err := newTestSweeper(broken, mail, sweepNow).RunExitSurveySweepAll(context.Background(), false); err == nil {
			t.Error("expected error when company listing fails")
		}
	})
}

func TestDedupeContacts(t *testing.T) {
	t.Parallel()

	in := []database.Contact{
		{ID: "a", Email: "a@example.com"},
		{ID: "a", Email: "a@example.com"},
		{ID: "b", Email: "a@example.com"},
		{ID: "c", Email: "c@example.com"},
		{ID: "d", Email: ""},
		{ID: "d", Email: ""},
	}
	out := dedupeContacts(in)
	if len(out) != 3 {
		t.Fatalf("deduped to %d contacts, want 3: %+v", len(out), out)
	}
	if out[0].ID != "a" || out[1].ID != "c" || out[2].ID != "d" {
		t.Errorf("order not preserved: %+v", out)
	}
}
