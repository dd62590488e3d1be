package postgres

import (
	"context"
	"fmt"
	"time"

	"keepmore/internal/domain/analytics"
)

type AnalyticsRepository struct {
	db *DB
}

func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) Totals(ctx context.Context, since7d, since30d time.Time) (analytics.StoreTotals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM plaid_items) + (SELECT COUNT(*) FROM plaid_investment_items),
			(SELECT COUNT(*) FROM plaid_accounts),
			(SELECT COUNT(*) FROM plaid_recurring_transactions),
			(SELECT COUNT(*) FROM financial_goals),
			(SELECT COUNT(*) FROM financial_insights WHERE generated_at >= $1),
			(SELECT COUNT(*) FROM financial_insights WHERE generated_at >= $2),
			(SELECT COUNT(*) FROM revenuecat_subscriptions WHERE is_active)
	`

	var t analytics.StoreTotals
	err := r.db.QueryRowContext(ctx, query, since7d, since30d).Scan(
		&t.Items, &t.Accounts, &t.Recurring, &t.Goals, &t.Insights7d, &t.Insights30d, &t.ActiveSubscriptions,
	)
	if err != nil {
		return t, fmt.Errorf("failed to count totals: %w", err)
	}
	return t, nil
}

func (r *AnalyticsRepository) ActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM user_activity WHERE created_at >= $1`,
		since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

// TransactionVolume counts transactions dated on or after sinceDate and sums
// their absolute amounts.
func (r *AnalyticsRepository) TransactionVolume(ctx context.Context, sinceDate string) (analytics.VolumeRow, error) {
	var v analytics.VolumeRow
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(ABS(amount)), 0) FROM plaid_transactions WHERE date >= $1`,
		sinceDate,
	).Scan(&v.Count, &v.Total)
	if err != nil {
		return v, fmt.Errorf("failed to sum transaction volume: %w", err)
	}
	return v, nil
}

func (r *AnalyticsRepository) DailyTransactions(ctx context.Context, sinceDate string) ([]analytics.VolumeRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date::text, COUNT(*), COALESCE(SUM(ABS(amount)), 0)
		FROM plaid_transactions
		WHERE date >= $1
		GROUP BY date
		ORDER BY date
	`, sinceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to group daily transactions: %w", err)
	}
	defer rows.Close()

	var out []analytics.VolumeRow
	for rows.Next() {
		var v analytics.VolumeRow
		if err := rows.Scan(&v.Date, &v.Count, &v.Total); err != nil {
			return nil, fmt.Errorf("failed to scan daily transactions: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TopInstitutions ranks institutions by linked items across both item tables.
func (r *AnalyticsRepository) TopInstitutions(ctx context.Context, limit int) ([]analytics.InstitutionCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT institution_name, COUNT(*) AS items
		FROM (
			SELECT institution_name FROM plaid_items
			UNION ALL
			SELECT institution_name FROM plaid_investment_items
		) linked
		WHERE institution_name IS NOT NULL AND institution_name <> ''
		GROUP BY institution_name
		ORDER BY items DESC, institution_name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank institutions: %w", err)
	}
	defer rows.Close()

	var out []analytics.InstitutionCount
	for rows.Next() {
		var c analytics.InstitutionCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan institution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
