package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"keepmore/internal/domain/investment"
)

var holdingUpsert = upsert{
	table: "plaid_investments",
	columns: []string{
		"user_id", "plaid_item_id", "account_id", "account_name", "account_type", "account_subtype",
		"institution_name", "security_id", "security_name", "symbol", "quantity", "price", "value",
		"cost_basis", "iso_currency_code", "unofficial_currency_code", "last_updated_at", "updated_at",
	},
	conflict: []string{"user_id", "account_id", "security_id"},
}

type InvestmentRepository struct {
	db *DB
}

func NewInvestmentRepository(db *DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// ExistingKeys matches on the user rather than the item: holdings are unique
// per user, account and security, so a re-linked institution updates them.
func (r *InvestmentRepository) ExistingKeys(ctx context.Context, userID string, accountIDs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(accountIDs) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, security_id FROM plaid_investments WHERE user_id = $1 AND account_id = ANY($2)`,
		userID, pq.Array(accountIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var accountID, securityID string
		if err := rows.Scan(&accountID, &securityID); err != nil {
			return nil, fmt.Errorf("failed to scan holding key: %w", err)
		}
		found[investment.HoldingKey(accountID, securityID)] = struct{}{}
	}
	return found, rows.Err()
}

func (r *InvestmentRepository) UpsertBatch(ctx context.Context, rows []investment.Holding) error {
	return upsertRows(ctx, r.db, holdingUpsert, rows, func(h investment.Holding) []any {
		return []any{
			h.UserID, h.PlaidItemID, h.AccountID, h.AccountName, h.AccountType, h.AccountSubtype,
			h.InstitutionName, h.SecurityID, h.SecurityName, h.Symbol, h.Quantity, h.Price, h.Value,
			h.CostBasis, h.IsoCurrencyCode, h.UnofficialCurrencyCode, h.LastUpdatedAt, h.UpdatedAt,
		}
	})
}

func (r *InvestmentRepository) DeleteByItem(ctx context.Context, plaidItemID string) (int64, error) {
	return deleteByItem(ctx, r.db, "plaid_investments", plaidItemID)
}
