// Package transaction holds Plaid transactions.
package transaction

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"keepmore/internal/infrastructure/plaid"
)

// Transaction is one row of plaid_transactions, keyed by TransactionID.
// Everything except Pending is immutable at Plaid; rows are overwritten on every sync.
type Transaction struct {
	PlaidItemID                    string
	UserID                         string
	AccountID                      string
	TransactionID                  string
	AccountOwner                   *string
	Amount                         decimal.Decimal
	AuthorizedDate                 *string
	AuthorizedDatetime             *string
	Category                       []string
	CategoryID                     *string
	CheckNumber                    *string
	Counterparties                 json.RawMessage
	Date                           string
	Datetime                       *string
	IsoCurrencyCode                *string
	Location                       json.RawMessage
	LogoURL                        *string
	MerchantEntityID               *string
	MerchantName                   *string
	Name                           string
	PaymentChannel                 *string
	PaymentMeta                    json.RawMessage
	Pending                        bool
	PendingTransactionID           *string
	PersonalFinanceCategory        json.RawMessage
	PersonalFinanceCategoryIconURL *string
	TransactionCode                *string
	TransactionType                *string
	UnofficialCurrencyCode         *string
	Website                        *string
	UpdatedAt                      time.Time
}

// FromPlaid maps a Plaid transaction onto a row owned by the given item.
func FromPlaid(plaidItemID, userID string, t plaid.Transaction, now time.Time) Transaction {
	return Transaction{
		PlaidItemID:                    plaidItemID,
		UserID:                         userID,
		AccountID:                      t.AccountID,
		TransactionID:                  t.TransactionID,
		AccountOwner:                   t.AccountOwner,
		Amount:                         t.Amount,
		AuthorizedDate:                 t.AuthorizedDate,
		AuthorizedDatetime:             t.AuthorizedDatetime,
		Category:                       t.Category,
		CategoryID:                     t.CategoryID,
		CheckNumber:                    t.CheckNumber,
		Counterparties:                 t.Counterparties,
		Date:                           t.Date,
		Datetime:                       t.Datetime,
		IsoCurrencyCode:                t.IsoCurrencyCode,
		Location:                       t.Location,
		LogoURL:                        t.LogoURL,
		MerchantEntityID:               t.MerchantEntityID,
		MerchantName:                   t.MerchantName,
		Name:                           t.Name,
		PaymentChannel:                 t.PaymentChannel,
		PaymentMeta:                    t.PaymentMeta,
		Pending:                        t.Pending,
		PendingTransactionID:           t.PendingTransactionID,
		PersonalFinanceCategory:        t.PersonalFinanceCategory,
		PersonalFinanceCategoryIconURL: t.PersonalFinanceCategoryIconURL,
		TransactionCode:                t.TransactionCode,
		TransactionType:                t.TransactionType,
		UnofficialCurrencyCode:         t.UnofficialCurrencyCode,
		Website:                        t.Website,
		UpdatedAt:                      now,
	}
}

func (t Transaction) Key() string {
	return t.TransactionID
}
