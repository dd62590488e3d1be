package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keepmore/internal/domain/account"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code pq.ErrorCode
		want error
	}{
		{"23505", ErrUniqueViolation},
		{"23503", ErrForeignKeyViolation},
		{"23502", ErrNotNullViolation},
		{"23514", ErrCheckViolation},
		{"40001", ErrRetryable},
		{"40P01", ErrRetryable},
		{"57014", ErrCanceled},
		{"57P01", ErrUnavailable},
		{"53300", ErrUnavailable},
		{"08006", ErrUnavailable},
		{"22P02", ErrInvalidInput},
		{"42P01", ErrDatabase},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.code))
		})
	}
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.Equal(t, sql.ErrNoRows, translate(sql.ErrNoRows))

	cause := &pq.Error{
		Code:       "23505",
		Message:    `duplicate key value violates unique constraint "plaid_items_item_id_key"`,
		Table:      "plaid_items",
		Constraint: "plaid_items_item_id_key",
	}
	err := translate(cause)

	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, "plaid_items", pgErr.Table)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NotErrorIs(t, err, ErrRetryable)

	var raw *pq.Error
	require.ErrorAs(t, err, &raw)
	assert.Same(t, cause, raw)

	assert.Contains(t, err.Error(), "on plaid_items constraint plaid_items_item_id_key")
	assert.Same(t, err, translate(err))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		query string
		op    string
		table string
	}{
		{"  select id FROM users WHERE id = $1", "SELECT", "users"},
		{"DELETE FROM plaid_items WHERE id = $1", "DELETE", "plaid_items"},
		{"UPDATE plaid_items\n\tSET last_synced_at = now()", "UPDATE", "plaid_items"},
		{"INSERT INTO plaid_accounts (a) VALUES ($1)", "INSERT", "plaid_accounts"},
		{"WITH latest AS (SELECT * FROM subscriptions) SELECT 1", "WITH", "subscriptions"},
		{"SELECT 1", "SELECT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.op+" "+tt.table, func(t *testing.T) {
			op, table := describe(tt.query)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.table, table)
		})
	}
}

func TestSummarize(t *testing.T) {
	u := upsert{table: "t", columns: []string{"a", "b"}, conflict: []string{"a"}}
	assert.Equal(t,
		"INSERT INTO t (a, b) VALUES ($1, $2), ... /* 3 rows */ ON CONFLICT (a) DO UPDATE SET b = EXCLUDED.b",
		summarize(u.query(3)),
	)

	assert.Equal(t,
		"SELECT id FROM waitlist WHERE email = '?' AND note = '?'",
		summarize("SELECT id\n  FROM waitlist\n WHERE email = 'a@b.co' AND note = 'it''s'"),
	)

	assert.Equal(t, "INSERT INTO t (a) VALUES ($1)", summarize("INSERT INTO t (a) VALUES ($1)"))

	long := summarize("SELECT " + strings.Repeat("col, ", 200) + "x FROM t")
	assert.Len(t, long, maxStatementLen+len("..."))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestDB_ExecTranslatesErrors(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM plaid_items`).
		WillReturnError(&pq.Error{Code: "23503", Table: "plaid_accounts"})

	_, err := db.ExecContext(context.Background(), `DELETE FROM plaid_items WHERE id = $1`, "row-1")
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
}

func TestRow_ScanNoRows(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT id FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var id string
	err := db.QueryRowContext(context.Background(), `SELECT id FROM users WHERE id = $1`, "u1").Scan(&id)
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestUpsertRows_RetriesDeadlock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`INSERT INTO plaid_accounts`).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectExec(`INSERT INTO plaid_accounts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertBatch(context.Background(), []account.Account{
		{PlaidItemID: "item-1", UserID: "u1", AccountID: "acc-1", Name: "Checking", Type: "depository", UpdatedAt: time.Now()},
	})
	require.NoError(t, err)
}

func TestUpsertRows_GivesUpOnConstraintViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`INSERT INTO plaid_accounts`).
		WillReturnError(&pq.Error{Code: "23503", Table: "plaid_accounts", Constraint: "plaid_accounts_plaid_item_id_fkey"})

	err := repo.UpsertBatch(context.Background(), []account.Account{
		{PlaidItemID: "gone", UserID: "u1", AccountID: "acc-1", Name: "Checking", Type: "depository", UpdatedAt: time.Now()},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Contains(t, err.Error(), "failed to upsert into plaid_accounts")
}

func TestUpsertRows_StopsAfterAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	for i := 0; i < upsertAttempts; i++ {
		mock.ExpectExec(`INSERT INTO plaid_accounts`).
			WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	}

	err := repo.UpsertBatch(context.Background(), []account.Account{
		{PlaidItemID: "item-1", UserID: "u1", AccountID: "acc-1", Name: "Checking", Type: "depository", UpdatedAt: time.Now()},
	})
	assert.True(t, errors.Is(err, ErrRetryable))
}
