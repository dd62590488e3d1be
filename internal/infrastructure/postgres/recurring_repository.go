package postgres

import (
	"context"

	"github.com/lib/pq"

	"keepmore/internal/domain/recurring"
)

var recurringUpsert = upsert{
	table: "plaid_recurring_transactions",
	columns: []string{
		"plaid_item_id", "user_id", "account_id", "stream_id", "average_amount", "category", "category_id",
		"description", "first_date", "frequency", "is_active", "is_user_modified", "last_amount", "last_date",
		"last_user_modified_datetime", "merchant_name", "personal_finance_category", "predicted_next_date",
		"status", "transaction_ids", "updated_at",
	},
	conflict: []string{"stream_id"},
}

type RecurringRepository struct {
	db *DB
}

func NewRecurringRepository(db *DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func (r *RecurringRepository) ExistingIDs(ctx context.Context, plaidItemID string, streamIDs []string) (map[string]struct{}, error) {
	return existingIDs(ctx, r.db, "plaid_recurring_transactions", "stream_id", plaidItemID, streamIDs)
}

func (r *RecurringRepository) UpsertBatch(ctx context.Context, rows []recurring.Stream) error {
	return upsertRows(ctx, r.db, recurringUpsert, rows, func(s recurring.Stream) []any {
		return []any{
			s.PlaidItemID, s.UserID, s.AccountID, s.StreamID, jsonParam(s.AverageAmount), pq.Array(s.Category), s.CategoryID,
			s.Description, s.FirstDate, s.Frequency, s.IsActive, s.IsUserModified, jsonParam(s.LastAmount), s.LastDate,
			s.LastUserModifiedDatetime, s.MerchantName, jsonParam(s.PersonalFinanceCategory), s.PredictedNextDate,
			s.Status, pq.Array(s.TransactionIDs), s.UpdatedAt,
		}
	})
}

func (r *RecurringRepository) DeleteByItem(ctx context.Context, plaidItemID string) (int64, error) {
	return deleteByItem(ctx, r.db, "plaid_recurring_transactions", plaidItemID)
}
