// Package user closes a KeepMore account: a best-effort sweep of every
// user-scoped table followed by deletion of the Supabase identity.
package user

import "errors"

var ErrValidation = errors.New("validation failed")

// Table is a user-scoped table and the column holding the user id.
type Table struct {
	Name   string
	Column string
}

// ScopedTables lists every table swept on account deletion, children first.
var ScopedTables = []Table{
	{"plaid_transactions", "user_id"},
	{"plaid_accounts", "user_id"},
	{"plaid_recurring_transactions", "user_id"},
	{"plaid_items", "user_id"},
	{"plaid_investments", "user_id"},
	{"plaid_investment_items", "user_id"},
	{"financial_goals", "user_id"},
	{"user_financial_summaries", "user_id"},
	{"financial_insights", "user_id"},
	{"embeddings", "user_id"},
	{"user_activity", "user_id"},
	{"user_preferences", "user_id"},
	{"user_budgets", "user_id"},
	{"revenuecat_subscriptions", "app_user_id"},
	{"revenuecat_events", "app_user_id"},
}

// TableResult is the outcome of one table in the sweep.
type TableResult struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// DeletionReport summarises a sweep.
type DeletionReport struct {
	UserID          string        `json:"userId"`
	Tables          []TableResult `json:"tables"`
	FailedTables    int           `json:"failedTables"`
	IdentityDeleted bool          `json:"identityDeleted"`
}
