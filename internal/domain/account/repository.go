package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// ExistingIDs returns which of accountIDs are already stored for the item
	ExistingIDs(ctx context.Context, plaidItemID string, accountIDs []string) (map[string]struct{}, error)

	// UpsertBatch inserts or updates rows keyed by account_id
	UpsertBatch(ctx context.Context, rows []Account) error

	// DeleteByItem removes every account of an item
	DeleteByItem(ctx context.Context, plaidItemID string) (int64, error)
}
