// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/database"
	"github.com/bibleos/ark/internal/logging"
	"github.com/bibleos/ark/internal/mailer"
	"github.com/bibleos/ark/internal/metrics"
)

// Store is the database surface the sweeps read and write through.
type Store interface {
	ListDueSOPs(ctx context.Context, horizon time.Time) ([]database.DueSOP, error)
	ListOverdueExitSurveys(ctx context.Context, companyID string, asOf time.Time) ([]database.OverdueExitSurvey, error)
	ListExitSurveyCompanyIDs(ctx context.Context) ([]string, error)
	GetNotificationMarkers(ctx context.Context, companyID, entityType, entityID string) (database.NotificationMarkers, error)
	InsertNotification(ctx context.Context, n database.Notification) error
	GetEmployeeContact(ctx context.Context, companyID, employeeID string) (database.Contact, error)
	ListEscalationContacts(ctx context.Context, companyID string, departmentID *string) ([]database.Contact, error)
}

// RunResult summarizes one sweep. In a dry run the counts are what the sweep
// would have done; nothing was written or sent.
type RunResult struct {
	Processed          int
	RemindersCreated   int
	EscalationsCreated int
	EmailsSent         int
	DryRun             bool
}

// Sweeper runs the SOP review and exit-survey reminder jobs.
type Sweeper struct {
	store  Store
	mail   mailer.Mailer
	policy Policy
	now    func() time.Time
}

// NewSweeper builds a sweeper from the configured reminder windows.
func NewSweeper(store Store, mail mailer.Mailer, cfg config.RemindersConfig) *Sweeper {
	return &Sweeper{
		store: store,
		mail:  mail,
		policy: Policy{
			Cooldown:        cfg.Cooldown,
			LeadWindow:      cfg.LeadWindow,
			EscalationAfter: cfg.EscalationAfter,
		},
		now: time.Now,
	}
}

// RunSOPSweep processes every SOP across all companies whose next review
// falls within the lead window. With dryRun set the sweep reports what it
// would do and stops before any marker write or email.
func (s *Sweeper) RunSOPSweep(ctx context.Context, dryRun bool) (RunResult, error) {
	start := s.now()
	defer func() {
		metrics.ReminderRunDuration.WithLabelValues("sop").Observe(s.now().Sub(start).Seconds())
	}()

	now := s.now().UTC()
	result := RunResult{DryRun: dryRun}

	sops, err := s.store.ListDueSOPs(ctx, now.Add(s.policy.LeadWindow))
	if err != nil {
		return result, fmt.Errorf("list due sops: %w", err)
	}

	for _, sop := range sops {
		result.Processed++
		log := logging.Ctx(ctx).With().
			Str("sop_id", sop.ID).
			Str("company_id", sop.CompanyID).
			Logger()

		markers, err := s.store.GetNotificationMarkers(ctx, sop.CompanyID, database.EntityTypeSOP, sop.ID)
		if err != nil {
			log.Error().Err(err).Msg("Loading reminder markers failed, skipping SOP")
			continue
		}

		st := StateFromMarkers(markers.LastReminderAt, markers.LastEscalationAt)
		action := Decide(now, sop.NextReviewAt, st, s.policy)
		if action == ActionNone {
			continue
		}

		if dryRun {
			s.countAction(&result, action, "sop", true)
			continue
		}

		switch action {
		case ActionRemind:
			sent, err := s.remindSOPOwner(ctx, sop)
			if err != nil {
				log.Error().Err(err).Msg("SOP reminder failed")
				continue
			}
			s.countAction(&result, action, "sop", false)
			if sent {
				result.EmailsSent++
			}
		case ActionEscalate:
			sent, err := s.escalateSOP(ctx, sop)
			if err != nil {
				log.Error().Err(err).Msg("SOP escalation failed")
				continue
			}
			s.countAction(&result, action, "sop", false)
			result.EmailsSent += sent
		}
	}
	return result, nil
}

// RunExitSurveySweep processes one company's overdue exit surveys. Exit
// surveys never escalate; the employee is reminded once per cooldown until
// the survey is completed.
func (s *Sweeper) RunExitSurveySweep(ctx context.Context, companyID string, dryRun bool) (RunResult, error) {
	start := s.now()
	defer func() {
		metrics.ReminderRunDuration.WithLabelValues("exit_survey").Observe(s.now().Sub(start).Seconds())
	}()

	now := s.now().UTC()
	result := RunResult{DryRun: dryRun}

	surveys, err := s.store.ListOverdueExitSurveys(ctx, companyID, now)
	if err != nil {
		return result, fmt.Errorf("list overdue exit surveys: %w", err)
	}

	for _, survey := range surveys {
		result.Processed++
		log := logging.Ctx(ctx).With().
			Str("exit_survey_id", survey.ID).
			Str("company_id", survey.CompanyID).
			Logger()

		markers, err := s.store.GetNotificationMarkers(ctx, survey.CompanyID, database.EntityTypeExitSurvey, survey.ID)
		if err != nil {
			log.Error().Err(err).Msg("Loading reminder markers failed, skipping survey")
			continue
		}

		st := StateFromMarkers(markers.LastReminderAt, markers.LastEscalationAt)
		if st.LastSentAt != nil && now.Sub(*st.LastSentAt) < s.policy.Cooldown {
			continue
		}

		if dryRun {
			result.RemindersCreated++
			continue
		}

		contact, err := s.store.GetEmployeeContact(ctx, survey.CompanyID, survey.EmployeeID)
		if err != nil {
			log.Error().Err(err).Msg("Loading survey recipient failed, skipping survey")
			continue
		}

		n := database.Notification{
			CompanyID:   survey.CompanyID,
			RecipientID: contact.ID,
			Kind:        database.NotificationKindReminder,
			EntityType:  database.EntityTypeExitSurvey,
			EntityID:    survey.ID,
			Title:       "Exit survey overdue",
			Body:        fmt.Sprintf("Your exit survey was due on %s. Please complete it.", survey.DueAt.Format("2006-01-02")),
		}
		if err := s.store.InsertNotification(ctx, n); err != nil {
			log.Error().Err(err).Msg("Writing reminder marker failed, skipping survey")
			continue
		}
		result.RemindersCreated++
		metrics.RemindersCreated.WithLabelValues("exit_survey").Inc()

		if s.sendEmail(ctx, contact, n.Title, n.Body) {
			result.EmailsSent++
		}
	}
	return result, nil
}

// RunExitSurveySweepAll fans the exit-survey sweep out over every company
// with open surveys. One company's failure is logged and does not stop the
// rest; the aggregate result covers the companies that ran.
func (s *Sweeper) RunExitSurveySweepAll(ctx context.Context, dryRun bool) (RunResult, error) {
	result := RunResult{DryRun: dryRun}

	companyIDs, err := s.store.ListExitSurveyCompanyIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("list exit survey companies: %w", err)
	}

	for _, companyID := range companyIDs {
		companyResult, err := s.RunExitSurveySweep(ctx, companyID, dryRun)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("company_id", companyID).
				Msg("Exit survey sweep failed for company")
			continue
		}
		result.Processed += companyResult.Processed
		result.RemindersCreated += companyResult.RemindersCreated
		result.EmailsSent += companyResult.EmailsSent
	}
	return result, nil
}

// remindSOPOwner writes the reminder marker and emails the owner. The bool
// reports whether an email actually went out; a marker with no email is
// still a successful reminder.
func (s *Sweeper) remindSOPOwner(ctx context.Context, sop database.DueSOP) (bool, error) {
	if sop.OwnerID == nil {
		return false, fmt.Errorf("sop %s has no owner to remind", sop.ID)
	}
	contact, err := s.store.GetEmployeeContact(ctx, sop.CompanyID, *sop.OwnerID)
	if err != nil {
		return false, fmt.Errorf("load sop owner: %w", err)
	}

	title := "SOP review due"
	body := fmt.Sprintf("%q is due for review on %s.", sop.Title, sop.NextReviewAt.Format("2006-01-02"))

	// The marker write is the durable state; it must land before the email.
	if err := s.store.InsertNotification(ctx, database.Notification{
		CompanyID:   sop.CompanyID,
		RecipientID: contact.ID,
		Kind:        database.NotificationKindReminder,
		EntityType:  database.EntityTypeSOP,
		EntityID:    sop.ID,
		Title:       title,
		Body:        body,
	}); err != nil {
		return false, fmt.Errorf("write reminder marker: %w", err)
	}

	return s.sendEmail(ctx, contact, title, body), nil
}

// escalateSOP notifies the widened audience: department managers, admins,
// the owner. Returns how many emails went out. One recipient's email failure
// does not roll back markers already written for others.
func (s *Sweeper) escalateSOP(ctx context.Context, sop database.DueSOP) (int, error) {
	recipients, err := s.store.ListEscalationContacts(ctx, sop.CompanyID, sop.DepartmentID)
	if err != nil {
		return 0, fmt.Errorf("load escalation contacts: %w", err)
	}
	if sop.OwnerID != nil {
		owner, err := s.store.GetEmployeeContact(ctx, sop.CompanyID, *sop.OwnerID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("sop_id", sop.ID).Msg("SOP owner unavailable for escalation")
		} else {
			recipients = append(recipients, owner)
		}
	}
	recipients = dedupeContacts(recipients)
	if len(recipients) == 0 {
		return 0, fmt.Errorf("sop %s has no escalation recipients", sop.ID)
	}

	title := "SOP review overdue"
	body := fmt.Sprintf("%q is overdue for review (was due %s) and has not been resolved.",
		sop.Title, sop.NextReviewAt.Format("2006-01-02"))

	sent := 0
	wrote := false
	for _, contact := range recipients {
		if err := s.store.InsertNotification(ctx, database.Notification{
			CompanyID:   sop.CompanyID,
			RecipientID: contact.ID,
			Kind:        database.NotificationKindEscalation,
			EntityType:  database.EntityTypeSOP,
			EntityID:    sop.ID,
			Title:       title,
			Body:        body,
		}); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("sop_id", sop.ID).
				Str("recipient_id", contact.ID).
				Msg("Writing escalation marker failed for recipient")
			continue
		}
		wrote = true
		if s.sendEmail(ctx, contact, title, body) {
			sent++
		}
	}
	if !wrote {
		return 0, fmt.Errorf("sop %s: no escalation marker could be written", sop.ID)
	}
	return sent, nil
}

// sendEmail delivers best-effort. Failures are logged and absorbed: the
// notification marker already written is the source of truth.
func (s *Sweeper) sendEmail(ctx context.Context, contact database.Contact, subject, body string) bool {
	if contact.Email == "" {
		return false
	}
	err := s.mail.Send(ctx, mailer.Message{To: contact.Email, Subject: subject, TextBody: body})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("recipient", contact.Email).Msg("Reminder email failed")
		return false
	}
	return s.mail.Enabled()
}

func (s *Sweeper) countAction(result *RunResult, action Action, kind string, dryRun bool) {
	switch action {
	case ActionRemind:
		result.RemindersCreated++
		if !dryRun {
			metrics.RemindersCreated.WithLabelValues(kind).Inc()
		}
	case ActionEscalate:
		result.EscalationsCreated++
		if !dryRun {
			metrics.EscalationsCreated.Inc()
		}
	}
}

// dedupeContacts drops duplicate recipients by id, then by email, preserving
// order.
func dedupeContacts(contacts []database.Contact) []database.Contact {
	seenID := map[string]struct{}{}
	seenEmail := map[string]struct{}{}
	out := contacts[:0:0]
	for _, c := range contacts {
		if _, ok := seenID[c.ID]; ok {
			continue
		}
		if c.Email != "" {
			if _, ok := seenEmail[c.Email]; ok {
				continue
			}
			seenEmail[c.Email] = struct{}{}
		}
		seenID[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
