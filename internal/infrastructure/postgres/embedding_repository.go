package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"keepmore/internal/domain/embedding"
)

type EmbeddingRepository struct {
	db *DB
}

func NewEmbeddingRepository(db *DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// scoped appends the optional user filter and the limit to a source query.
func scoped(query, userID string, limit int) (string, []any) {
	var args []any
	if userID != "" {
		args = append(args, userID)
		query += ` WHERE user_id = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	return query, args
}

func (r *EmbeddingRepository) Transactions(ctx context.Context, userID string, limit int) ([]embedding.TransactionRow, error) {
	query, args := scoped(`
		SELECT id::text, user_id::text, name, merchant_name, amount, date::text, category,
		       personal_finance_category, payment_channel
		FROM plaid_transactions`, userID, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	var out []embedding.TransactionRow
	for rows.Next() {
		var t embedding.TransactionRow
		var pfc []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.MerchantName, &t.Amount, &t.Date,
			pq.Array(&t.Category), &pfc, &t.PaymentChannel); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.PersonalFinanceCategory = rawJSON(pfc)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *EmbeddingRepository) Investments(ctx context.Context, userID string, limit int) ([]embedding.InvestmentRow, error) {
	query, args := scoped(`
		SELECT id::text, user_id::text, security_name, symbol, account_name, account_type, account_subtype,
		       institution_name, quantity, price, value, cost_basis
		FROM plaid_investments`, userID, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load investments: %w", err)
	}
	defer rows.Close()

	var out []embedding.InvestmentRow
	for rows.Next() {
		var i embedding.InvestmentRow
		if err := rows.Scan(&i.ID, &i.UserID, &i.SecurityName, &i.Symbol, &i.AccountName, &i.AccountType, &i.AccountSubtype,
			&i.InstitutionName, &i.Quantity, &i.Price, &i.Value, &i.CostBasis); err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *EmbeddingRepository) Recurring(ctx context.Context, userID string, limit int) ([]embedding.RecurringRow, error) {
	query, args := scoped(`
		SELECT id::text, user_id::text, description, merchant_name, frequency, status, average_amount,
		       personal_finance_category, first_date::text, last_date::text
		FROM plaid_recurring_transactions`, userID, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []embedding.RecurringRow
	for rows.Next() {
		var s embedding.RecurringRow
		var avg, pfc []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.Description, &s.MerchantName, &s.Frequency, &s.Status, &avg,
			&pfc, &s.FirstDate, &s.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction: %w", err)
		}
		s.AverageAmount = rawJSON(avg)
		s.PersonalFinanceCategory = rawJSON(pfc)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *EmbeddingRepository) ExistingSourceIDs(ctx context.Context, source embedding.Source, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT source_id FROM embeddings WHERE source_table = $1 AND source_id = ANY($2)`,
		string(source), pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan embedding source id: %w", err)
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

func (r *EmbeddingRepository) Insert(ctx context.Context, e embedding.Embedding) error {
	var metadata any
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding metadata: %w", err)
		}
		metadata = string(b)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO embeddings (user_id, source_table, source_id, embedding, embedding_text, metadata)
		VALUES ($1, $2, $3, $4::vector, $5, $6)
	`, e.UserID, string(e.Source), e.SourceID, vectorParam(e.Vector), e.Text, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

// rawJSON copies a scanned jsonb value; the driver reuses its buffer.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
