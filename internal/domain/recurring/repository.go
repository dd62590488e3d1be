package recurring

import "context"

// Repository defines the interface for recurring stream data access
type Repository interface {
	ExistingIDs(ctx context.Context, plaidItemID string, streamIDs []string) (map[string]struct{}, error)
	UpsertBatch(ctx context.Context, rows []Stream) error
	DeleteByItem(ctx context.Context, plaidItemID string) (int64, error)
}
