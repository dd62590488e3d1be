package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// upsert describes a multi-row INSERT ... ON CONFLICT DO UPDATE. Every
// column outside the conflict target is overwritten from EXCLUDED, so
// created_at must not be listed.
type upsert struct {
	table    string
	columns  []string
	conflict []string
}

func (u upsert) query(rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(u.table)
	b.WriteString(" (")
	b.WriteString(strings.Join(u.columns, ", "))
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range u.columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(u.conflict, ", "))
	b.WriteString(") DO UPDATE SET ")

	key := make(map[string]bool, len(u.conflict))
	for _, c := range u.conflict {
		key[c] = true
	}
	first := true
	for _, c := range u.columns {
		if key[c] {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(c)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(c)
	}
	return b.String()
}

const (
	upsertAttempts = 3
	upsertBackoff  = 50 * time.Millisecond
)

// upsertRows writes rows in one statement. values returns one row's
// arguments in column order. A scheduled sync and a sync on link can touch
// the same item at once, so deadlocks and serialization failures are
// retried with a short backoff.
func upsertRows[T any](ctx context.Context, db *DB, u upsert, rows []T, values func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(u.columns))
	for _, row := range rows {
		args = append(args, values(row)...)
	}
	query := u.query(len(rows))

	for attempt := 1; ; attempt++ {
		_, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}

		var pgErr *Error
		if attempt == upsertAttempts || !errors.As(err, &pgErr) || !errors.Is(pgErr.Class, ErrRetryable) {
			return fmt.Errorf("failed to upsert into %s: %w", u.table, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to upsert into %s: %w", u.table, err)
		case <-time.After(time.Duration(attempt) * upsertBackoff):
		}
	}
}

// existingIDs returns which of ids are present in column for one item.
func existingIDs(ctx context.Context, db *DB, table, column, plaidItemID string, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE plaid_item_id = $1 AND %s = ANY($2)`, column, table, column)
	rows, err := db.QueryContext(ctx, query, plaidItemID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

func deleteByItem(ctx context.Context, db *DB, table, plaidItemID string) (int64, error) {
	result, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE plaid_item_id = $1`, table), plaidItemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", table, err)
	}
	return result.RowsAffected()
}

// jsonParam passes a raw JSON document to a jsonb column. Empty and JSON
// null both become SQL NULL.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

// vectorParam renders a pgvector literal such as [0.1,0.2].
func vectorParam(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
