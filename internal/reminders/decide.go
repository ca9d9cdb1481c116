// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package reminders sweeps due-date-bearing entities (SOP reviews, exit
// surveys) and sends at most one notification per cooldown window, escalating
// to a wider audience once an entity stays unresolved long enough.
//
// The durable cooldown state is the notification row itself: each entity's
// latest reminder and escalation markers are loaded once, folded into a
// State value, and run through the pure Decide function. Sweeps are safe to
// trigger more often than the cooldown; the decision logic makes extra
// invocations no-ops.
package reminders

import "time"

// State is the reminder history of one entity, derived from its notification
// markers. LastSentAt is the most recent send of either kind.
type State struct {
	LastSentAt  *time.Time
	EscalatedAt *time.Time
}

// Action is what a sweep should do for one entity.
type Action int

const (
	// ActionNone means the entity needs nothing right now.
	ActionNone Action = iota
	// ActionRemind notifies the entity's owner.
	ActionRemind
	// ActionEscalate notifies the widened audience in addition to the owner.
	ActionEscalate
)

// Policy holds the sweep timing knobs.
type Policy struct {
	// Cooldown is the minimum gap between two sends for one entity.
	Cooldown time.Duration
	// LeadWindow is how far before the due date reminders start.
	LeadWindow time.Duration
	// EscalationAfter is how long past the due date an unresolved entity
	// escalates.
	EscalationAfter time.Duration
}

// Decide returns the action for one entity. Resolved entities never reach
// this function; sweeps exclude them by query.
//
// The cooldown is rechecked on every call regardless of state, so a sweep
// scheduled tighter than the cooldown cannot double-send. Escalation fires
// once: after an escalation marker exists the entity drops back to regular
// cooldown-paced reminders.
func Decide(now, dueAt time.Time, st State, p Policy) Action {
	if dueAt.Sub(now) > p.LeadWindow {
		return ActionNone
	}
	if st.LastSentAt != nil && now.Sub(*st.LastSentAt) < p.Cooldown {
		return ActionNone
	}
	if now.Sub(dueAt) >= p.EscalationAfter && st.EscalatedAt == nil {
		return ActionEscalate
	}
	return ActionRemind
}

// StateFromMarkers folds the latest notification markers into a State.
func StateFromMarkers(lastReminderAt, lastEscalationAt *time.Time) State {
	st := State{EscalatedAt: lastEscalationAt}
	st.LastSentAt = lastReminderAt
	if lastEscalationAt != nil && (st.LastSentAt == nil || lastEscalationAt.After(*st.LastSentAt)) {
		st.LastSentAt = lastEscalationAt
	}
	return st
}
