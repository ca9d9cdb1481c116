// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bibleos/ark/internal/metrics"
)

// Notification kinds used as reminder markers. The notification row is the
// durable cooldown state: its created_at is what the next sweep compares
// against, so there is no separate reminder bookkeeping table.
const (
	NotificationKindReminder   = "reminder"
	NotificationKindEscalation = "escalation"
)

// Entity types notifications attach to.
const (
	EntityTypeSOP        = "sop"
	EntityTypeExitSurvey = "exit_survey"
)

// DueSOP is one SOP whose review date falls within the sweep horizon.
type DueSOP struct {
	ID           string
	CompanyID    string
	DepartmentID *string
	OwnerID      *string
	Title        string
	NextReviewAt time.Time
}

// OverdueExitSurvey is one uncompleted exit survey past its due date.
type OverdueExitSurvey struct {
	ID         string
	CompanyID  string
	EmployeeID string
	DueAt      time.Time
}

// NotificationMarkers are the latest reminder and escalation timestamps for
// one entity, or nil when none exists.
type NotificationMarkers struct {
	LastReminderAt   *time.Time
	LastEscalationAt *time.Time
}

// Notification is one row to insert as a reminder marker.
type Notification struct {
	CompanyID   string
	RecipientID string
	Kind        string
	EntityType  string
	EntityID    string
	Title       string
	Body        string
}

// Contact is an employee reachable by email.
type Contact struct {
	ID       string
	Email    string
	FullName string
}

// ListDueSOPs returns active SOPs across all companies whose next review
// date is at or before the horizon. Reviewed SOPs fall out of the result
// because a completed review pushes next_review_at forward.
func (s *Store) ListDueSOPs(ctx context.Context, horizon time.Time) (sops []DueSOP, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "sops", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, department_id, owner_id, title, next_review_at
		FROM sops
		WHERE status = 'active'
		  AND next_review_at IS NOT NULL
		  AND next_review_at <= $1
		ORDER BY next_review_at, id`, horizon)
	if err != nil {
		return nil, fmt.Errorf("list due sops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sop DueSOP
		if err := rows.Scan(&sop.ID, &sop.CompanyID, &sop.DepartmentID,
			&sop.OwnerID, &sop.Title, &sop.NextReviewAt); err != nil {
			return nil, err
		}
		sops = append(sops, sop)
	}
	return sops, rows.Err()
}

// ListOverdueExitSurveys returns one company's uncompleted exit surveys past
// their due date. Completion is the terminal state; completed surveys never
// re-enter a sweep.
func (s *Store) ListOverdueExitSurveys(ctx context.Context, companyID string, asOf time.Time) (surveys []OverdueExitSurvey, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "exit_surveys", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, employee_id, due_at
		FROM exit_surveys
		WHERE company_id = $1
		  AND completed_at IS NULL
		  AND due_at <= $2
		ORDER BY due_at, id`, companyID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list overdue exit surveys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sv OverdueExitSurvey
		if err := rows.Scan(&sv.ID, &sv.CompanyID, &sv.EmployeeID, &sv.DueAt); err != nil {
			return nil, err
		}
		surveys = append(surveys, sv)
	}
	return surveys, rows.Err()
}

// ListExitSurveyCompanyIDs returns the companies with at least one
// uncompleted exit survey. The interval scheduler uses this to fan the
// company-scoped sweep out across the fleet.
func (s *Store) ListExitSurveyCompanyIDs(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "exit_surveys", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT company_id
		FROM exit_surveys
		WHERE completed_at IS NULL
		ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list exit survey companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetNotificationMarkers reads the latest reminder and escalation marker
// timestamps for one entity in a single query.
func (s *Store) GetNotificationMarkers(ctx context.Context, companyID, entityType, entityID string) (markers NotificationMarkers, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "notifications", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT kind, MAX(created_at)
		FROM notifications
		WHERE company_id = $1 AND entity_type = $2 AND entity_id = $3
		  AND kind IN ($4, $5)
		GROUP BY kind`,
		companyID, entityType, entityID,
		NotificationKindReminder, NotificationKindEscalation)
	if err != nil {
		return NotificationMarkers{}, fmt.Errorf("load notification markers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var at time.Time
		if err := rows.Scan(&kind, &at); err != nil {
			return NotificationMarkers{}, err
		}
		switch kind {
		case NotificationKindReminder:
			markers.LastReminderAt = &at
		case NotificationKindEscalation:
			markers.LastEscalationAt = &at
		}
	}
	return markers, rows.Err()
}

// InsertNotification writes one reminder marker row.
func (s *Store) InsertNotification(ctx context.Context, n Notification) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "notifications", time.Since(start), err) }()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, company_id, recipient_id, kind, entity_type, entity_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		uuid.NewString(), n.CompanyID, n.RecipientID, n.Kind,
		n.EntityType, n.EntityID, n.Title, n.Body)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetEmployeeContact loads one employee's contact details.
func (s *Store) GetEmployeeContact(ctx context.Context, companyID, employeeID string) (c Contact, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "employees", time.Since(start), err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(email, ''), COALESCE(full_name, '')
		FROM employees
		WHERE company_id = $1 AND id = $2`, companyID, employeeID)

	if err := row.Scan(&c.ID, &c.Email, &c.FullName); err != nil {
		return Contact{}, fmt.Errorf("load employee contact: %w", err)
	}
	return c, nil
}

// ListEscalationContacts returns the widened escalation audience for a
// company: owners and admins, plus managers of the given department when one
// is set. Employees without an email are excluded here; recipient
// deduplication is the caller's job.
func (s *Store) ListEscalationContacts(ctx context.Context, companyID string, departmentID *string) (contacts []Contact, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "employees", time.Since(start), err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, email, COALESCE(full_name, '')
		FROM employees
		WHERE company_id = $1
		  AND email IS NOT NULL AND email <> ''
		  AND (
			role IN ('owner', 'admin')
			OR (role = 'manager' AND $2::uuid IS NOT NULL AND department_id = $2)
		  )
		ORDER BY id`, companyID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list escalation contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FullName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
