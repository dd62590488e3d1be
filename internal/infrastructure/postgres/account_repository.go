package postgres

import (
	"context"

	"keepmore/internal/domain/account"
)

var accountUpsert = upsert{
	table: "plaid_accounts",
	columns: []string{
		"plaid_item_id", "user_id", "account_id", "balances", "holder_category", "mask", "name",
		"official_name", "persistent_account_id", "subtype", "type", "updated_at",
	},
	conflict: []string{"account_id"},
}

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) ExistingIDs(ctx context.Context, plaidItemID string, accountIDs []string) (map[string]struct{}, error) {
	return existingIDs(ctx, r.db, "plaid_accounts", "account_id", plaidItemID, accountIDs)
}

func (r *AccountRepository) UpsertBatch(ctx context.Context, rows []account.Account) error {
	return upsertRows(ctx, r.db, accountUpsert, rows, func(a account.Account) []any {
		return []any{
			a.PlaidItemID, a.UserID, a.AccountID, jsonParam(a.Balances), a.HolderCategory, a.Mask, a.Name,
			a.OfficialName, a.PersistentAccountID, a.Subtype, a.Type, a.UpdatedAt,
		}
	})
}

func (r *AccountRepository) DeleteByItem(ctx context.Context, plaidItemID string) (int64, error) {
	return deleteByItem(ctx, r.db, "plaid_accounts", plaidItemID)
}
