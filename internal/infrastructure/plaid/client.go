// Package plaid adapts the plaid-go SDK to the calls and row shapes KeepMore uses.
package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	plaidapi "github.com/plaid/plaid-go/v29/plaid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	apiVersion     = "2020-09-14"
	defaultTimeout = 120 * time.Second
)

var environments = map[string]plaidapi.Environment{
	"sandbox":     plaidapi.Sandbox,
	"development": "https://development.plaid.com",
	"production":  plaidapi.Production,
}

// BaseURL resolves a PLAID_ENV value, defaulting to sandbox.
func BaseURL(env string) string {
	if u, ok := environments[env]; ok {
		return string(u)
	}
	return string(plaidapi.Sandbox)
}

// Client handles communication with the Plaid API
type Client struct {
	api      *plaidapi.PlaidApiService
	clientID string
	secret   string
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a Plaid client for the given base URL.
func NewClient(baseURL, clientID, secret string) *Client {
	cfg := plaidapi.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)
	cfg.AddDefaultHeader("Plaid-Version", apiVersion)
	cfg.UseEnvironment(plaidapi.Environment(baseURL))
	cfg.HTTPClient = &http.Client{
		Timeout:   defaultTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &Client{
		api:      plaidapi.NewAPIClient(cfg).PlaidApi,
		clientID: clientID,
		secret:   secret,
	}
}

// Configured reports whether credentials were provided.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.secret != ""
}

func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkTokenResponse, error) {
	countries := make([]plaidapi.CountryCode, 0, len(req.CountryCodes))
	for _, cc := range req.CountryCodes {
		countries = append(countries, plaidapi.CountryCode(cc))
	}
	products := make([]plaidapi.Products, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, plaidapi.Products(p))
	}

	body := plaidapi.LinkTokenCreateRequest{
		ClientName:   req.ClientName,
		Language:     req.Language,
		CountryCodes: countries,
		User:         plaidapi.LinkTokenCreateRequestUser{ClientUserId: req.User.ClientUserID},
	}
	body.SetProducts(products)
	if req.RedirectURI != "" {
		body.SetRedirectUri(req.RedirectURI)
	}
	if req.AndroidPackageName != "" {
		body.SetAndroidPackageName(req.AndroidPackageName)
	}
	if req.Webhook != "" {
		body.SetWebhook(req.Webhook)
	}

	resp, _, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(body).Execute()
	if err != nil {
		return nil, wrap("link/token/create", err)
	}
	return &LinkTokenResponse{
		LinkToken:  resp.GetLinkToken(),
		Expiration: resp.GetExpiration().UTC().Format(time.RFC3339),
		RequestID:  resp.GetRequestId(),
	}, nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	resp, _, err := c.api.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(plaidapi.ItemPublicTokenExchangeRequest{PublicToken: publicToken}).
		Execute()
	if err != nil {
		return nil, wrap("item/public_token/exchange", err)
	}
	return &ExchangeResponse{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
		RequestID:   resp.GetRequestId(),
	}, nil
}

// RemoveItem invalidates the access token upstream.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	_, _, err := c.api.ItemRemove(ctx).
		ItemRemoveRequest(plaidapi.ItemRemoveRequest{AccessToken: accessToken}).
		Execute()
	if err != nil {
		return wrap("item/remove", err)
	}
	return nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	resp, _, err := c.api.AccountsGet(ctx).
		AccountsGetRequest(plaidapi.AccountsGetRequest{AccessToken: accessToken}).
		Execute()
	if err != nil {
		return nil, wrap("accounts/get", err)
	}

	var out AccountsResponse
	if err := project(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransactions(ctx context.Context, req TransactionsRequest) (*TransactionsResponse, error) {
	count := int32(req.Options.Count)
	offset := int32(req.Options.Offset)
	body := plaidapi.TransactionsGetRequest{
		AccessToken: req.AccessToken,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	body.SetOptions(plaidapi.TransactionsGetRequestOptions{Count: &count, Offset: &offset})

	resp, _, err := c.api.TransactionsGet(ctx).TransactionsGetRequest(body).Execute()
	if err != nil {
		return nil, wrap("transactions/get", err)
	}

	var out TransactionsResponse
	if err := project(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRecurring(ctx context.Context, accessToken string) (*RecurringResponse, error) {
	resp, _, err := c.api.TransactionsRecurringGet(ctx).
		TransactionsRecurringGetRequest(plaidapi.TransactionsRecurringGetRequest{AccessToken: accessToken}).
		Execute()
	if err != nil {
		return nil, wrap("transactions/recurring/get", err)
	}

	var out RecurringResponse
	if err := project(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetHoldings(ctx context.Context, accessToken string) (*HoldingsResponse, error) {
	resp, _, err := c.api.InvestmentsHoldingsGet(ctx).
		InvestmentsHoldingsGetRequest(plaidapi.InvestmentsHoldingsGetRequest{AccessToken: accessToken}).
		Execute()
	if err != nil {
		return nil, wrap("investments/holdings/get", err)
	}

	var out HoldingsResponse
	if err := project(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// project copies an SDK response into the package's row-shaped models
// through its wire form, which keeps nested objects such as balances and
// locations as raw JSON for the jsonb columns.
func project(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", src, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %T: %w", src, err)
	}
	return nil
}
