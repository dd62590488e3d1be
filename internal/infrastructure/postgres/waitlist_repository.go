package postgres

import (
	"context"
	"fmt"

	"keepmore/internal/domain/waitlist"
)

type WaitlistRepository struct {
	db *DB
}

func NewWaitlistRepository(db *DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Insert ignores a duplicate email and reports created=false for it.
func (r *WaitlistRepository) Insert(ctx context.Context, s waitlist.Signup) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO waitlist (name, email, country)
		VALUES (NULLIF($1, ''), $2, NULLIF($3, ''))
		ON CONFLICT (email) DO NOTHING
	`, s.Name, s.Email, s.Country)
	if err != nil {
		return false, fmt.Errorf("failed to insert waitlist signup: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}
