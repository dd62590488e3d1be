package plaid

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LinkTokenRequest is the body of /link/token/create.
type LinkTokenRequest struct {
	ClientName         string   `json:"client_name"`
	Language           string   `json:"language"`
	CountryCodes       []string `json:"country_codes"`
	User               LinkUser `json:"user"`
	Products           []string `json:"products"`
	RedirectURI        string   `json:"redirect_uri,omitempty"`
	AndroidPackageName string   `json:"android_package_name,omitempty"`
	Webhook            string   `json:"webhook,omitempty"`
}

type LinkUser struct {
	ClientUserID string `json:"client_user_id"`
}

type LinkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// Account mirrors the Plaid account object. Balances are kept raw since they
// are stored as a jsonb snapshot.
type Account struct {
	AccountID           string          `json:"account_id"`
	Balances            json.RawMessage `json:"balances"`
	HolderCategory      *string         `json:"holder_category"`
	Mask                *string         `json:"mask"`
	Name                string          `json:"name"`
	OfficialName        *string         `json:"official_name"`
	PersistentAccountID *string         `json:"persistent_account_id"`
	Subtype             *string         `json:"subtype"`
	Type                string          `json:"type"`
}

type AccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	RequestID string    `json:"request_id"`
}

type Transaction struct {
	TransactionID                  string          `json:"transaction_id"`
	AccountID                      string          `json:"account_id"`
	AccountOwner                   *string         `json:"account_owner"`
	Amount                         decimal.Decimal `json:"amount"`
	AuthorizedDate                 *string         `json:"authorized_date"`
	AuthorizedDatetime             *string         `json:"authorized_datetime"`
	Category                       []string        `json:"category"`
	CategoryID                     *string         `json:"category_id"`
	CheckNumber                    *string         `json:"check_number"`
	Counterparties                 json.RawMessage `json:"counterparties"`
	Date                           string          `json:"date"`
	Datetime                       *string         `json:"datetime"`
	IsoCurrencyCode                *string         `json:"iso_currency_code"`
	Location                       json.RawMessage `json:"location"`
	LogoURL                        *string         `json:"logo_url"`
	MerchantEntityID               *string         `json:"merchant_entity_id"`
	MerchantName                   *string         `json:"merchant_name"`
	Name                           string          `json:"name"`
	PaymentChannel                 *string         `json:"payment_channel"`
	PaymentMeta                    json.RawMessage `json:"payment_meta"`
	Pending                        bool            `json:"pending"`
	PendingTransactionID           *string         `json:"pending_transaction_id"`
	PersonalFinanceCategory        json.RawMessage `json:"personal_finance_category"`
	PersonalFinanceCategoryIconURL *string         `json:"personal_finance_category_icon_url"`
	TransactionCode                *string         `json:"transaction_code"`
	TransactionType                *string         `json:"transaction_type"`
	UnofficialCurrencyCode         *string         `json:"unofficial_currency_code"`
	Website                        *string         `json:"website"`
}

type TransactionsRequest struct {
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     TransactionsOptions `json:"options"`
}

type TransactionsOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type TransactionsResponse struct {
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// Stream is a recurring transaction stream. Amount objects carry their own
// currency so they stay raw.
type Stream struct {
	StreamID                 string          `json:"stream_id"`
	AccountID                string          `json:"account_id"`
	AverageAmount            json.RawMessage `json:"average_amount"`
	Category                 []string        `json:"category"`
	CategoryID               *string         `json:"category_id"`
	Description              *string         `json:"description"`
	FirstDate                *string         `json:"first_date"`
	Frequency                string          `json:"frequency"`
	IsActive                 bool            `json:"is_active"`
	IsUserModified           bool            `json:"is_user_modified"`
	LastAmount               json.RawMessage `json:"last_amount"`
	LastDate                 *string         `json:"last_date"`
	LastUserModifiedDatetime *string         `json:"last_user_modified_datetime"`
	MerchantName             *string         `json:"merchant_name"`
	PersonalFinanceCategory  json.RawMessage `json:"personal_finance_category"`
	PredictedNextDate        *string         `json:"predicted_next_date"`
	Status                   string          `json:"status"`
	TransactionIDs           []string        `json:"transaction_ids"`
}

type RecurringResponse struct {
	InflowStreams  []Stream `json:"inflow_streams"`
	OutflowStreams []Stream `json:"outflow_streams"`
	RequestID      string   `json:"request_id"`
}

type Holding struct {
	AccountID              string              `json:"account_id"`
	SecurityID             string              `json:"security_id"`
	InstitutionPrice       decimal.NullDecimal `json:"institution_price"`
	InstitutionPriceAsOf   *string             `json:"institution_price_as_of"`
	InstitutionValue       decimal.NullDecimal `json:"institution_value"`
	CostBasis              decimal.NullDecimal `json:"cost_basis"`
	Quantity               decimal.NullDecimal `json:"quantity"`
	IsoCurrencyCode        *string             `json:"iso_currency_code"`
	UnofficialCurrencyCode *string             `json:"unofficial_currency_code"`
}

type Security struct {
	SecurityID             string              `json:"security_id"`
	Name                   *string             `json:"name"`
	TickerSymbol           *string             `json:"ticker_symbol"`
	ClosePrice             decimal.NullDecimal `json:"close_price"`
	ClosePriceAsOf         *string             `json:"close_price_as_of"`
	Price                  decimal.NullDecimal `json:"price"`
	PriceAsOf              *string             `json:"price_as_of"`
	IsoCurrencyCode        *string             `json:"iso_currency_code"`
	UnofficialCurrencyCode *string             `json:"unofficial_currency_code"`
}

type HoldingsResponse struct {
	Accounts   []Account  `json:"accounts"`
	Holdings   []Holding  `json:"holdings"`
	Securities []Security `json:"securities"`
	RequestID  string     `json:"request_id"`
}
