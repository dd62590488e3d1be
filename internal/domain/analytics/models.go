// Package analytics computes the admin dashboard metrics.
package analytics

import "github.com/shopspring/decimal"

// Metrics is the /api/admin/metrics payload.
type Metrics struct {
	Totals          Totals             `json:"totals"`
	Activity        Activity           `json:"activity"`
	Volume          Volume             `json:"volume"`
	Trends          Trends             `json:"trends"`
	TopInstitutions []InstitutionCount `json:"topInstitutions"`
}

type Totals struct {
	Users                 int `json:"users"`
	ConnectedInstitutions int `json:"connectedInstitutions"`
	ConnectedAccounts     int `json:"connectedAccounts"`
	Recurring             int `json:"recurring"`
	Goals                 int `json:"goals"`
	Insights7d            int `json:"insights7d"`
	Insights30d           int `json:"insights30d"`
	ActiveSubscriptions   int `json:"activeSubscriptions"`
}

type Activity struct {
	DAU         int `json:"dau"`
	WAU         int `json:"wau"`
	NewUsers7d  int `json:"newUsers7d"`
	NewUsers30d int `json:"newUsers30d"`
}

type Volume struct {
	Transactions30dCount int     `json:"transactions30dCount"`
	Transactions30dTotal float64 `json:"transactions30dTotal"`
	Transactions12mCount int     `json:"transactions12mCount"`
	Transactions12mTotal float64 `json:"transactions12mTotal"`
}

type Trends struct {
	SignupsLast14Days      []DailyCount  `json:"signupsLast14Days"`
	TransactionsLast30Days []DailyVolume `json:"transactionsLast30Days"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DailyVolume struct {
	Date  string  `json:"date"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

type InstitutionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StoreTotals are the counts read from Postgres.
type StoreTotals struct {
	Items               int
	Accounts            int
	Recurring           int
	Goals               int
	Insights7d          int
	Insights30d         int
	ActiveSubscriptions int
}

// VolumeRow is a transaction count and absolute amount total, optionally per day.
type VolumeRow struct {
	Date  string
	Count int
	Total decimal.Decimal
}
