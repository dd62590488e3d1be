// Package recurring holds Plaid recurring transaction streams.
package recurring

import (
	"encoding/json"
	"time"

	"keepmore/internal/infrastructure/plaid"
)

// Stream is one row of plaid_recurring_transactions, keyed by StreamID.
// Status, PredictedNextDate and LastAmount change between syncs.
type Stream struct {
	PlaidItemID              string
	UserID                   string
	AccountID                string
	StreamID                 string
	AverageAmount            json.RawMessage
	Category                 []string
	CategoryID               *string
	Description              *string
	FirstDate                *string
	Frequency                string
	IsActive                 bool
	IsUserModified           bool
	LastAmount               json.RawMessage
	LastDate                 *string
	LastUserModifiedDatetime *string
	MerchantName             *string
	PersonalFinanceCategory  json.RawMessage
	PredictedNextDate        *string
	Status                   string
	TransactionIDs           []string
	UpdatedAt                time.Time
}

// FromPlaid maps a Plaid stream onto a row owned by the given item.
func FromPlaid(plaidItemID, userID string, s plaid.Stream, now time.Time) Stream {
	ids := s.TransactionIDs
	if ids == nil {
		ids = []string{}
	}
	return Stream{
		PlaidItemID:              plaidItemID,
		UserID:                   userID,
		AccountID:                s.AccountID,
		StreamID:                 s.StreamID,
		AverageAmount:            s.AverageAmount,
		Category:                 s.Category,
		CategoryID:               s.CategoryID,
		Description:              s.Description,
		FirstDate:                s.FirstDate,
		Frequency:                s.Frequency,
		IsActive:                 s.IsActive,
		IsUserModified:           s.IsUserModified,
		LastAmount:               s.LastAmount,
		LastDate:                 s.LastDate,
		LastUserModifiedDatetime: s.LastUserModifiedDatetime,
		MerchantName:             s.MerchantName,
		PersonalFinanceCategory:  s.PersonalFinanceCategory,
		PredictedNextDate:        s.PredictedNextDate,
		Status:                   s.Status,
		TransactionIDs:           ids,
		UpdatedAt:                now,
	}
}

func (s Stream) Key() string {
	return s.StreamID
}
