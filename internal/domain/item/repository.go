package item

import (
	"context"
	"time"
)

// Repository defines the interface for item data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// Upsert stores an exchanged item, replacing the credential when Plaid's item id already exists.
	Upsert(ctx context.Context, kind Kind, params CreateParams) (*Item, error)

	// Get returns the item with the given row id, or ErrItemNotFound.
	Get(ctx context.Context, kind Kind, id string) (*Item, error)
	// GetForUser returns the item with the given row id owned by userID, or ErrItemNotFound.
	GetForUser(ctx context.Context, kind Kind, id, userID string) (*Item, error)

	// List returns all items of a kind, or only userID's when it is non-empty.
	List(ctx context.Context, kind Kind, userID string) ([]*Item, error)

	MarkSynced(ctx context.Context, kind Kind, id string, at time.Time) error

	Delete(ctx context.Context, kind Kind, id string) error
}

// ScopedDeleter removes rows that belong to one item. Account, transaction,
// recurring and holding repositories implement it.
type ScopedDeleter interface {
	DeleteByItem(ctx context.Context, plaidItemID string) (int64, error)
}

// Cipher encrypts access credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
