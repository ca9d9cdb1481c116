// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

package schema

import "sync"

// registry declares every tenant-scoped table the platform owns.
// Declaration order is the export order: companies first, then roughly
// parents before children within each domain. Delete and insert orders are
// derived, so only the Parents edges need to stay correct when the platform
// schema changes.
var registry = []Table{
	// Tenant root. Exported by id, upserted on restore, never deleted.
	{Name: "companies", ScopeColumn: "id", Domain: "core"},
	{Name: "company_settings", ScopeColumn: "company_id", Domain: "core"},

	// Core organization
	{Name: "departments", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "core"},
	{Name: "teams", ScopeColumn: "company_id", Parents: []string{"departments"}, HasSampleFlag: true, Domain: "core"},
	{Name: "team_members", ScopeColumn: "company_id", Parents: []string{"teams"}, HasSampleFlag: true, Domain: "core"},
	{Name: "positions", ScopeColumn: "company_id", Parents: []string{"departments"}, HasSampleFlag: true, Domain: "core"},
	{Name: "employees", ScopeColumn: "company_id", Parents: []string{"departments", "positions"}, HasSampleFlag: true, Domain: "core"},
	{Name: "locations", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "core"},
	{Name: "tags", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "core"},
	{Name: "attachments", ScopeColumn: "company_id", Domain: "core"},
	{Name: "notifications", ScopeColumn: "company_id", Domain: "core"},
	{Name: "activity_logs", ScopeColumn: "company_id", Domain: "core"},
	{Name: "forms", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "core"},
	{Name: "form_fields", ScopeColumn: "company_id", Parents: []string{"forms"}, HasSampleFlag: true, Domain: "core"},
	{Name: "form_submissions", ScopeColumn: "company_id", Parents: []string{"forms"}, Domain: "core"},
	{Name: "form_submission_values", ScopeColumn: "company_id", Parents: []string{"form_submissions", "form_fields"}, Domain: "core"},

	// Work management
	{Name: "projects", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "work"},
	{Name: "project_members", ScopeColumn: "company_id", Parents: []string{"projects", "employees"}, HasSampleFlag: true, Domain: "work"},
	{Name: "project_phases", ScopeColumn: "company_id", Parents: []string{"projects"}, HasSampleFlag: true, Domain: "work"},
	{Name: "tasks", ScopeColumn: "company_id", Parents: []string{"projects", "project_phases"}, HasSampleFlag: true, Domain: "work"},
	{Name: "subtasks", ScopeColumn: "company_id", Parents: []string{"tasks"}, HasSampleFlag: true, Domain: "work"},
	{Name: "task_assignments", ScopeColumn: "company_id", Parents: []string{"tasks", "employees"}, HasSampleFlag: true, Domain: "work"},
	{Name: "task_comments", ScopeColumn: "company_id", Parents: []string{"tasks"}, Domain: "work"},
	{Name: "time_entries", ScopeColumn: "company_id", Parents: []string{"tasks", "employees"}, Domain: "work"},

	// SOPs and workflows
	{Name: "sops", ScopeColumn: "company_id", Parents: []string{"departments"}, HasSampleFlag: true, Domain: "workflow"},
	{Name: "sop_versions", ScopeColumn: "company_id", Parents: []string{"sops"}, HasSampleFlag: true, Domain: "workflow"},
	{Name: "sop_steps", ScopeColumn: "company_id", Parents: []string{"sop_versions"}, HasSampleFlag: true, Domain: "workflow"},
	{Name: "sop_acknowledgements", ScopeColumn: "company_id", Parents: []string{"sops", "employees"}, Domain: "workflow"},
	{Name: "sop_review_alerts", ScopeColumn: "company_id", Parents: []string{"sops"}, Domain: "workflow"},
	{Name: "workflows", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "workflow"},
	{Name: "workflow_steps", ScopeColumn: "company_id", Parents: []string{"workflows"}, HasSampleFlag: true, Domain: "workflow"},
	{Name: "workflow_runs", ScopeColumn: "company_id", Parents: []string{"workflows"}, Domain: "workflow"},
	{Name: "workflow_run_steps", ScopeColumn: "company_id", Parents: []string{"workflow_runs", "workflow_steps"}, Domain: "workflow"},

	// CRM
	{Name: "organizations", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "crm"},
	{Name: "contacts", ScopeColumn: "company_id", Parents: []string{"organizations"}, HasSampleFlag: true, Domain: "crm"},
	{Name: "contact_notes", ScopeColumn: "company_id", Parents: []string{"contacts"}, Domain: "crm"},
	{Name: "deal_stages", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "crm"},
	{Name: "deals", ScopeColumn: "company_id", Parents: []string{"contacts", "deal_stages"}, HasSampleFlag: true, Domain: "crm"},
	{Name: "deal_activities", ScopeColumn: "company_id", Parents: []string{"deals"}, Domain: "crm"},
	{Name: "campaigns", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "crm"},
	{Name: "leads", ScopeColumn: "company_id", Parents: []string{"campaigns"}, HasSampleFlag: true, Domain: "crm"},

	// Finance
	{Name: "gl_accounts", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "finance"},
	{Name: "invoices", ScopeColumn: "company_id", Parents: []string{"contacts"}, HasSampleFlag: true, Domain: "finance"},
	{Name: "invoice_items", ScopeColumn: "company_id", Parents: []string{"invoices"}, HasSampleFlag: true, Domain: "finance"},
	{Name: "payments", ScopeColumn: "company_id", Parents: []string{"invoices"}, Domain: "finance"},
	{Name: "expense_categories", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "finance"},
	{Name: "expenses", ScopeColumn: "company_id", Parents: []string{"expense_categories", "employees"}, HasSampleFlag: true, Domain: "finance"},
	{Name: "budgets", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "finance"},
	{Name: "vendors", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "finance"},
	{Name: "bills", ScopeColumn: "company_id", Parents: []string{"vendors"}, HasSampleFlag: true, Domain: "finance"},
	{Name: "bill_items", ScopeColumn: "company_id", Parents: []string{"bills"}, HasSampleFlag: true, Domain: "finance"},

	// Donor management
	{Name: "funds", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "donor"},
	{Name: "donors", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "donor"},
	{Name: "donations", ScopeColumn: "company_id", Parents: []string{"donors", "funds"}, HasSampleFlag: true, Domain: "donor"},
	{Name: "pledges", ScopeColumn: "company_id", Parents: []string{"donors", "funds"}, HasSampleFlag: true, Domain: "donor"},
	{Name: "pledge_payments", ScopeColumn: "company_id", Parents: []string{"pledges"}, Domain: "donor"},

	// Learning management
	{Name: "courses", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "lms"},
	{Name: "course_modules", ScopeColumn: "company_id", Parents: []string{"courses"}, HasSampleFlag: true, Domain: "lms"},
	{Name: "lessons", ScopeColumn: "company_id", Parents: []string{"course_modules"}, HasSampleFlag: true, Domain: "lms"},
	{Name: "enrollments", ScopeColumn: "company_id", Parents: []string{"courses", "employees"}, HasSampleFlag: true, Domain: "lms"},
	{Name: "lesson_progress", ScopeColumn: "company_id", Parents: []string{"enrollments", "lessons"}, Domain: "lms"},
	{Name: "quizzes", ScopeColumn: "company_id", Parents: []string{"lessons"}, HasSampleFlag: true, Domain: "lms"},
	{Name: "quiz_questions", ScopeColumn: "company_id", Parents: []string{"quizzes"}, HasSampleFlag: true, Domain: "lms"},
	{Name: "quiz_attempts", ScopeColumn: "company_id", Parents: []string{"quizzes", "enrollments"}, Domain: "lms"},

	// Coaching and exit surveys
	{Name: "coaching_programs", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "coaching"},
	{Name: "coaching_goals", ScopeColumn: "company_id", Parents: []string{"coaching_programs", "employees"}, HasSampleFlag: true, Domain: "coaching"},
	{Name: "coaching_sessions", ScopeColumn: "company_id", Parents: []string{"coaching_programs", "employees"}, Domain: "coaching"},
	{Name: "exit_surveys", ScopeColumn: "company_id", Parents: []string{"employees"}, Domain: "coaching"},
	{Name: "exit_survey_responses", ScopeColumn: "company_id", Parents: []string{"exit_surveys"}, Domain: "coaching"},
	{Name: "exit_survey_alerts", ScopeColumn: "company_id", Parents: []string{"exit_surveys"}, Domain: "coaching"},

	// Support
	{Name: "ticket_categories", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "support"},
	{Name: "tickets", ScopeColumn: "company_id", Parents: []string{"ticket_categories", "contacts"}, Domain: "support"},
	{Name: "ticket_messages", ScopeColumn: "company_id", Parents: []string{"tickets"}, Domain: "support"},
	{Name: "kb_categories", ScopeColumn: "company_id", HasSampleFlag: true, Domain: "support"},
	{Name: "kb_articles", ScopeColumn: "company_id", Parents: []string{"kb_categories"}, HasSampleFlag: true, Domain: "support"},
}

var (
	defaultGraph     *Graph
	defaultGraphOnce sync.Once
)

// Default returns the validated graph over the platform registry.
// The registry is static, so validation failure is a programming error and
// panics at first use rather than surfacing an error on every call site.
func Default() *Graph {
	defaultGraphOnce.Do(func() {
		g, err := NewGraph(registry)
		if err != nil {
			panic("schema registry invalid: " + err.Error())
		}
		defaultGraph = g
	})
	return defaultGraph
}
