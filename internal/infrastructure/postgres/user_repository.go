package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"keepmore/internal/domain/user"
)

// UserDataRepository removes a user's rows table by table.
type UserDataRepository struct {
	db *DB
}

func NewUserDataRepository(db *DB) *UserDataRepository {
	return &UserDataRepository{db: db}
}

func (r *UserDataRepository) DeleteUserRows(ctx context.Context, table user.Table, userID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, pq.QuoteIdentifier(table.Name), pq.QuoteIdentifier(table.Column))

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table.Name, err)
	}
	return result.RowsAffected()
}
