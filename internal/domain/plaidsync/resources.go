package plaidsync

import (
	"context"
	"fmt"

	"keepmore/internal/domain/account"
	"keepmore/internal/domain/investment"
	"keepmore/internal/domain/item"
	"keepmore/internal/domain/recurring"
	"keepmore/internal/domain/transaction"
	"keepmore/internal/infrastructure/plaid"
)

const (
	recurringNotEnabled   = "Recurring transactions not enabled for this item"
	investmentsNotEnabled = "Investments not enabled for this item"
	dateLayout            = "2006-01-02"
)

func (e *Engine) syncAccounts(ctx context.Context, it *item.Item, accessToken string) (*ResourceResult, error) {
	resp, err := e.client.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	now := e.now()
	rows := make([]account.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		rows = append(rows, account.FromPlaid(it.ID, it.UserID, a, now))
	}
	if len(rows) == 0 {
		return &ResourceResult{Success: true}, nil
	}

	existing, err := e.stores.Accounts.ExistingIDs(ctx, it.ID, keys(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to load stored accounts: %w", err)
	}
	return reconcile(ctx, rows, existing, e.opts.BatchSize, e.stores.Accounts.UpsertBatch)
}

// syncTransactions pages through the trailing window. Running into the page
// guard fails the resource: writing a partial window would report success
// while silently missing rows.
func (e *Engine) syncTransactions(ctx context.Context, it *item.Item, accessToken string) (*ResourceResult, error) {
	now := e.now()
	txns, err := plaid.CollectTransactions(ctx, e.client, plaid.PageQuery{
		AccessToken: accessToken,
		StartDate:   now.AddDate(0, 0, -e.opts.TransactionDays).Format(dateLayout),
		EndDate:     now.Format(dateLayout),
		PageSize:    e.opts.PageSize,
		MaxPages:    e.opts.MaxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	rows := make([]transaction.Transaction, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, transaction.FromPlaid(it.ID, it.UserID, t, now))
	}
	if len(rows) == 0 {
		return &ResourceResult{Success: true}, nil
	}

	existing, err := e.stores.Transactions.ExistingIDs(ctx, it.ID, keys(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to load stored transactions: %w", err)
	}
	return reconcile(ctx, rows, existing, e.opts.BatchSize, e.stores.Transactions.UpsertBatch)
}

// syncRecurring stores outflow streams only.
func (e *Engine) syncRecurring(ctx context.Context, it *item.Item, accessToken string) (*ResourceResult, error) {
	resp, err := e.client.GetRecurring(ctx, accessToken)
	if plaid.IsProductNotEnabled(err) {
		return &ResourceResult{Success: true, Message: recurringNotEnabled}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recurring transactions: %w", err)
	}

	now := e.now()
	rows := make([]recurring.Stream, 0, len(resp.OutflowStreams))
	for _, s := range resp.OutflowStreams {
		rows = append(rows, recurring.FromPlaid(it.ID, it.UserID, s, now))
	}
	if len(rows) == 0 {
		return &ResourceResult{Success: true}, nil
	}

	existing, err := e.stores.Recurring.ExistingIDs(ctx, it.ID, keys(rows))
	if err != nil {
		return nil, fmt.Errorf("failed to load stored recurring streams: %w", err)
	}
	return reconcile(ctx, rows, existing, e.opts.BatchSize, e.stores.Recurring.UpsertBatch)
}

func (e *Engine) syncInvestments(ctx context.Context, it *item.Item, accessToken string) (*ResourceResult, error) {
	resp, err := e.client.GetHoldings(ctx, accessToken)
	if plaid.IsProductNotEnabled(err) {
		return &ResourceResult{Success: true, Message: investmentsNotEnabled}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	if len(resp.Holdings) == 0 {
		return &ResourceResult{Success: true}, nil
	}

	securities := make(map[string]*plaid.Security, len(resp.Securities))
	for i := range resp.Securities {
		securities[resp.Securities[i].SecurityID] = &resp.Securities[i]
	}
	accounts := make(map[string]*plaid.Account, len(resp.Accounts))
	for i := range resp.Accounts {
		accounts[resp.Accounts[i].AccountID] = &resp.Accounts[i]
	}

	owner := investment.Owner{
		UserID:          it.UserID,
		PlaidItemID:     it.ID,
		InstitutionName: it.InstitutionName,
	}
	now := e.now()

	rows := make([]investment.Holding, 0, len(resp.Holdings))
	accountIDs := make([]string, 0, len(resp.Accounts))
	seenAccounts := make(map[string]struct{})
	for _, h := range resp.Holdings {
		rows = append(rows, investment.Derive(owner, investment.Source{
			Holding:  h,
			Security: securities[h.SecurityID],
			Account:  accounts[h.AccountID],
		}, now))
		if _, ok := seenAccounts[h.AccountID]; !ok {
			seenAccounts[h.AccountID] = struct{}{}
			accountIDs = append(accountIDs, h.AccountID)
		}
	}

	existing, err := e.stores.Holdings.ExistingKeys(ctx, it.UserID, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored holdings: %w", err)
	}
	return reconcile(ctx, rows, existing, e.opts.BatchSize, e.stores.Holdings.UpsertBatch)
}
