// Package account holds Plaid account snapshots stored per item.
package account

import (
	"encoding/json"
	"time"

	"keepmore/internal/infrastructure/plaid"
)

// Account is one row of plaid_accounts. AccountID is unique across the system.
type Account struct {
	PlaidItemID         string
	UserID              string
	AccountID           string
	Balances            json.RawMessage
	HolderCategory      *string
	Mask                *string
	Name                string
	OfficialName        *string
	PersistentAccountID *string
	Subtype             *string
	Type                string
	UpdatedAt           time.Time
}

// FromPlaid maps a Plaid account onto a row owned by the given item.
func FromPlaid(plaidItemID, userID string, a plaid.Account, now time.Time) Account {
	return Account{
		PlaidItemID:         plaidItemID,
		UserID:              userID,
		AccountID:           a.AccountID,
		Balances:            a.Balances,
		HolderCategory:      a.HolderCategory,
		Mask:                a.Mask,
		Name:                a.Name,
		OfficialName:        a.OfficialName,
		PersistentAccountID: a.PersistentAccountID,
		Subtype:             a.Subtype,
		Type:                a.Type,
		UpdatedAt:           now,
	}
}

// Key is the upsert conflict key.
func (a Account) Key() string {
	return a.AccountID
}
