package postgres

import (
	"context"

	"github.com/lib/pq"

	"keepmore/internal/domain/transaction"
)

var transactionUpsert = upsert{
	table: "plaid_transactions",
	columns: []string{
		"plaid_item_id", "user_id", "account_id", "transaction_id", "account_owner", "amount",
		"authorized_date", "authorized_datetime", "category", "category_id", "check_number",
		"counterparties", "date", "datetime", "iso_currency_code", "location", "logo_url",
		"merchant_entity_id", "merchant_name", "name", "payment_channel", "payment_meta", "pending",
		"pending_transaction_id", "personal_finance_category", "personal_finance_category_icon_url",
		"transaction_code", "transaction_type", "unofficial_currency_code", "website", "updated_at",
	},
	conflict: []string{"transaction_id"},
}

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) ExistingIDs(ctx context.Context, plaidItemID string, transactionIDs []string) (map[string]struct{}, error) {
	return existingIDs(ctx, r.db, "plaid_transactions", "transaction_id", plaidItemID, transactionIDs)
}

func (r *TransactionRepository) UpsertBatch(ctx context.Context, rows []transaction.Transaction) error {
	return upsertRows(ctx, r.db, transactionUpsert, rows, func(t transaction.Transaction) []any {
		return []any{
			t.PlaidItemID, t.UserID, t.AccountID, t.TransactionID, t.AccountOwner, t.Amount,
			t.AuthorizedDate, t.AuthorizedDatetime, pq.Array(t.Category), t.CategoryID, t.CheckNumber,
			jsonParam(t.Counterparties), t.Date, t.Datetime, t.IsoCurrencyCode, jsonParam(t.Location), t.LogoURL,
			t.MerchantEntityID, t.MerchantName, t.Name, t.PaymentChannel, jsonParam(t.PaymentMeta), t.Pending,
			t.PendingTransactionID, jsonParam(t.PersonalFinanceCategory), t.PersonalFinanceCategoryIconURL,
			t.TransactionCode, t.TransactionType, t.UnofficialCurrencyCode, t.Website, t.UpdatedAt,
		}
	})
}

func (r *TransactionRepository) DeleteByItem(ctx context.Context, plaidItemID string) (int64, error) {
	return deleteByItem(ctx, r.db, "plaid_transactions", plaidItemID)
}
