// Package item manages linked Plaid items: link token creation, public token
// exchange and unlinking with local cleanup.
package item

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrItemNotFound = errors.New("plaid item not found")
	ErrValidation   = errors.New("validation failed")
)

// Kind separates banking links from investment links. They live in different tables.
type Kind string

const (
	KindBanking     Kind = "banking"
	KindInvestments Kind = "investments"
)

// ParseKind maps the request value onto a Kind. Empty means banking.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "banking", "transactions":
		return KindBanking, nil
	case "investments":
		return KindInvestments, nil
	default:
		return "", fmt.Errorf("%w: unknown item type %q", ErrValidation, s)
	}
}

// Table returns the table holding items of this kind.
func (k Kind) Table() string {
	if k == KindInvestments {
		return "plaid_investment_items"
	}
	return "plaid_items"
}

// Item is one Plaid link for one user. AccessToken holds the encrypted credential.
type Item struct {
	ID              string
	Kind            Kind
	UserID          string
	AccessToken     string
	ItemID          string
	InstitutionID   string
	InstitutionName string
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams contains the data needed to persist a freshly exchanged item.
type CreateParams struct {
	UserID          string
	AccessToken     string
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// ExchangeParams is the input of a public token exchange.
type ExchangeParams struct {
	PublicToken     string
	UserID          string
	InstitutionID   string
	InstitutionName string
}

// ExchangeResult never carries the access credential.
type ExchangeResult struct {
	ItemID      string `json:"itemId"`
	PlaidItemID string `json:"plaidItemId"`
	RequestID   string `json:"requestId"`
}

// LinkTokenParams is the input of link token creation.
type LinkTokenParams struct {
	UserID   string
	Platform string
}

// LinkConfig holds the static parts of a link token request.
type LinkConfig struct {
	ClientName         string
	Products           []string
	CountryCodes       []string
	RedirectURI        string
	AndroidPackageName string
	WebhookURL         string
}
