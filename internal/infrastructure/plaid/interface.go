package plaid

import "context"

// ClientInterface defines the Plaid calls the domain layer depends on
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
	GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error)
	GetTransactions(ctx context.Context, req TransactionsRequest) (*TransactionsResponse, error)
	GetRecurring(ctx context.Context, accessToken string) (*RecurringResponse, error)
	GetHoldings(ctx context.Context, accessToken string) (*HoldingsResponse, error)
}
