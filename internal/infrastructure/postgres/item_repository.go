package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keepmore/internal/domain/item"
)

type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, user_id, access_token, item_id, institution_id, institution_name, last_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, kind item.Kind) (*item.Item, error) {
	var it item.Item
	var accessToken, institutionID, institutionName sql.NullString
	var lastSynced sql.NullTime

	err := row.Scan(&it.ID, &it.UserID, &accessToken, &it.ItemID, &institutionID, &institutionName, &lastSynced, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	it.Kind = kind
	it.AccessToken = accessToken.String
	it.InstitutionID = institutionID.String
	it.InstitutionName = institutionName.String
	if lastSynced.Valid {
		it.LastSyncedAt = &lastSynced.Time
	}
	return &it, nil
}

// Upsert stores an exchanged item. Re-linking the same Plaid item replaces
// its credential and institution but keeps the row id.
func (r *ItemRepository) Upsert(ctx context.Context, kind item.Kind, params item.CreateParams) (*item.Item, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, access_token, item_id, institution_id, institution_name)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (item_id) DO UPDATE
			SET user_id = EXCLUDED.user_id,
			    access_token = EXCLUDED.access_token,
			    institution_id = COALESCE(EXCLUDED.institution_id, %[1]s.institution_id),
			    institution_name = COALESCE(EXCLUDED.institution_name, %[1]s.institution_name),
			    updated_at = NOW()
		RETURNING %s
	`, kind.Table(), itemColumns)

	row := r.db.QueryRowContext(ctx, query, params.UserID, params.AccessToken, params.ItemID, params.InstitutionID, params.InstitutionName)
	it, err := scanItem(row, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s: %w", kind.Table(), err)
	}
	return it, nil
}

func (r *ItemRepository) Get(ctx context.Context, kind item.Kind, id string) (*item.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, kind.Table())

	it, err := scanItem(r.db.QueryRowContext(ctx, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind.Table(), err)
	}
	return it, nil
}

func (r *ItemRepository) GetForUser(ctx context.Context, kind item.Kind, id, userID string) (*item.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`, itemColumns, kind.Table())

	it, err := scanItem(r.db.QueryRowContext(ctx, query, id, userID), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind.Table(), err)
	}
	return it, nil
}

// List returns items oldest first. An empty userID lists every user's items.
func (r *ItemRepository) List(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, itemColumns, kind.Table())
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind.Table(), err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *ItemRepository) MarkSynced(ctx context.Context, kind item.Kind, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_synced_at = $1, updated_at = $1 WHERE id = $2`, kind.Table())
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", kind.Table(), err)
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, kind item.Kind, id string) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.Table()), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind.Table(), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return item.ErrItemNotFound
	}
	return nil
}
