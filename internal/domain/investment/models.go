// Package investment holds investment holdings and the price/value fallback rules.
package investment

import (
	"time"

	"github.com/shopspring/decimal"

	"keepmore/internal/infrastructure/plaid"
)

// Holding is one row of plaid_investments, unique per (UserID, AccountID, SecurityID).
type Holding struct {
	UserID                 string
	PlaidItemID            string
	AccountID              string
	AccountName            *string
	AccountType            *string
	AccountSubtype         *string
	InstitutionName        *string
	SecurityID             string
	SecurityName           *string
	Symbol                 *string
	Quantity               decimal.NullDecimal
	Price                  decimal.NullDecimal
	Value                  decimal.NullDecimal
	CostBasis              decimal.NullDecimal
	IsoCurrencyCode        *string
	UnofficialCurrencyCode *string
	LastUpdatedAt          *string
	UpdatedAt              time.Time
}

// Key is "account:security", the identity used to tell inserts from updates.
func (h Holding) Key() string {
	return HoldingKey(h.AccountID, h.SecurityID)
}

func HoldingKey(accountID, securityID string) string {
	return accountID + ":" + securityID
}

// Source bundles what Plaid returns for one holding.
type Source struct {
	Holding  plaid.Holding
	Security *plaid.Security
	Account  *plaid.Account
}

// Owner identifies the item a holding is synced from.
type Owner struct {
	UserID          string
	PlaidItemID     string
	InstitutionName string
}

// Derive builds a holding row. The first present value wins:
//
//	price    institution_price, security close_price, security price
//	value    institution_value, price x quantity
//	currency holding ISO, security ISO, holding unofficial, security unofficial
//	as-of    institution_price_as_of, close_price_as_of, price_as_of
func Derive(owner Owner, src Source, now time.Time) Holding {
	h, sec, acct := src.Holding, src.Security, src.Account
	if sec == nil {
		sec = &plaid.Security{}
	}

	row := Holding{
		UserID:                 owner.UserID,
		PlaidItemID:            owner.PlaidItemID,
		AccountID:              h.AccountID,
		InstitutionName:        nonEmpty(owner.InstitutionName),
		SecurityID:             h.SecurityID,
		SecurityName:           sec.Name,
		Symbol:                 sec.TickerSymbol,
		Quantity:               h.Quantity,
		CostBasis:              h.CostBasis,
		UnofficialCurrencyCode: sec.UnofficialCurrencyCode,
		UpdatedAt:              now,
	}
	if acct != nil {
		row.AccountName = nonEmpty(acct.Name)
		row.AccountType = nonEmpty(acct.Type)
		row.AccountSubtype = acct.Subtype
	}

	row.Price = firstDecimal(h.InstitutionPrice, sec.ClosePrice, sec.Price)
	row.Value = h.InstitutionValue
	if !row.Value.Valid && row.Price.Valid && h.Quantity.Valid {
		row.Value = decimal.NewNullDecimal(row.Price.Decimal.Mul(h.Quantity.Decimal))
	}
	row.IsoCurrencyCode = firstString(h.IsoCurrencyCode, sec.IsoCurrencyCode, h.UnofficialCurrencyCode, sec.UnofficialCurrencyCode)
	row.LastUpdatedAt = firstString(h.InstitutionPriceAsOf, sec.ClosePriceAsOf, sec.PriceAsOf)

	return row
}

func firstDecimal(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
