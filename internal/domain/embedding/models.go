// Package embedding builds semantic-search vectors for stored Plaid rows.
package embedding

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultBatchSize = 10
	MaxBatchSize     = 500
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotConfigured = errors.New("embedding service is not configured")
)

// Source is the source_table value of an embeddings row.
type Source string

const (
	SourceTransaction Source = "transaction"
	SourceInvestment  Source = "investment"
	SourceRecurring   Source = "recurring_transaction"
)

// ParseSource accepts an empty value, meaning every source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceTransaction, SourceInvestment, SourceRecurring:
		return Source(s), nil
	default:
		return "", fmt.Errorf("%w: unknown sourceTable %q", ErrValidation, s)
	}
}

// TransactionRow is the projection of plaid_transactions used for text.
type TransactionRow struct {
	ID                      string
	UserID                  string
	Name                    string
	MerchantName            *string
	Amount                  decimal.Decimal
	Date                    string
	Category                []string
	PersonalFinanceCategory json.RawMessage
	PaymentChannel          *string
}

// InvestmentRow is the projection of plaid_investments used for text.
type InvestmentRow struct {
	ID              string
	UserID          string
	SecurityName    *string
	Symbol          *string
	AccountName     *string
	AccountType     *string
	AccountSubtype  *string
	InstitutionName *string
	Quantity        decimal.NullDecimal
	Price           decimal.NullDecimal
	Value           decimal.NullDecimal
	CostBasis       decimal.NullDecimal
}

// RecurringRow is the projection of plaid_recurring_transactions used for text.
type RecurringRow struct {
	ID                      string
	UserID                  string
	Description             *string
	MerchantName            *string
	Frequency               string
	Status                  string
	AverageAmount           json.RawMessage
	PersonalFinanceCategory json.RawMessage
	FirstDate               *string
	LastDate                *string
}

// Embedding is one row of the embeddings table.
type Embedding struct {
	UserID   string
	Source   Source
	SourceID string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// BatchParams is the input of one batch run.
type BatchParams struct {
	UserID    string
	BatchSize int
	Source    Source
}

type SourceStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

type Stats struct {
	Transactions SourceStats `json:"transactions"`
	Investments  SourceStats `json:"investments"`
	Recurring    SourceStats `json:"recurring"`
	TotalTime    int64       `json:"totalTime"`
}

// Processed sums the processed rows of every source.
func (s Stats) Processed() int {
	return s.Transactions.Processed + s.Investments.Processed + s.Recurring.Processed
}
