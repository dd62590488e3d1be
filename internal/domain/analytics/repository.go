package analytics

import (
	"context"
	"time"

	"keepmore/internal/infrastructure/supabase"
)

// Repository runs the aggregate queries. Dates are YYYY-MM-DD.
type Repository interface {
	Totals(ctx context.Context, since7d, since30d time.Time) (StoreTotals, error)
	ActiveUsers(ctx context.Context, since time.Time) (int, error)
	TransactionVolume(ctx context.Context, sinceDate string) (VolumeRow, error)
	DailyTransactions(ctx context.Context, sinceDate string) ([]VolumeRow, error)
	TopInstitutions(ctx context.Context, limit int) ([]InstitutionCount, error)
}

// UserLister lists every auth user. Implemented by the Supabase admin client.
type UserLister interface {
	ListUsers(ctx context.Context) ([]supabase.User, error)
}
