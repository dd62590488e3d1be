package investment

import "context"

// Repository defines the interface for holding data access
type Repository interface {
	// ExistingKeys returns the "account:security" keys stored for the user within accountIDs
	ExistingKeys(ctx context.Context, userID string, accountIDs []string) (map[string]struct{}, error)

	// UpsertBatch inserts or updates rows keyed by (user_id, account_id, security_id)
	UpsertBatch(ctx context.Context, rows []Holding) error

	DeleteByItem(ctx context.Context, plaidItemID string) (int64, error)
}
