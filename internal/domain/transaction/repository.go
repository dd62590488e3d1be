package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	ExistingIDs(ctx context.Context, plaidItemID string, transactionIDs []string) (map[string]struct{}, error)
	UpsertBatch(ctx context.Context, rows []Transaction) error
	DeleteByItem(ctx context.Context, plaidItemID string) (int64, error)
}
