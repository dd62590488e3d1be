package user

import "context"

// DataRepository deletes a user's rows from one table.
type DataRepository interface {
	DeleteUserRows(ctx context.Context, table Table, userID string) (int64, error)
}

// IdentityDeleter removes the identity record. Implemented by the Supabase admin client.
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}
