package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dateLayout      = "2006-01-02"
	signupTrendDays = 14
	txnTrendDays    = 30
	topInstitutions = 5
)

type Service struct {
	repo   Repository
	users  UserLister
	now    func() time.Time
	logger *zap.Logger
}

func NewService(repo Repository, users UserLister, logger *zap.Logger) *Service {
	return &Service{repo: repo, users: users, now: time.Now, logger: logger.Named("analytics")}
}

// Collect runs every query concurrently; the first failure cancels the rest.
func (s *Service) Collect(ctx context.Context) (*Metrics, error) {
	now := s.now().UTC()
	day := now.AddDate(0, 0, -1)
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, 0, -30)
	year := now.AddDate(-1, 0, 0)

	var (
		m       Metrics
		totals  StoreTotals
		vol30   VolumeRow
		vol12   VolumeRow
		daily   []VolumeRow
		signups []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.users.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		signups = make([]time.Time, len(users))
		for i, u := range users {
			signups[i] = u.CreatedAt.UTC()
		}
		return nil
	})
	g.Go(func() (err error) {
		totals, err = s.repo.Totals(gctx, week, month)
		return err
	})
	g.Go(func() (err error) {
		m.Activity.DAU, err = s.repo.ActiveUsers(gctx, day)
		return err
	})
	g.Go(func() (err error) {
		m.Activity.WAU, err = s.repo.ActiveUsers(gctx, week)
		return err
	})
	g.Go(func() (err error) {
		vol30, err = s.repo.TransactionVolume(gctx, month.Format(dateLayout))
		return err
	})
	g.Go(func() (err error) {
		vol12, err = s.repo.TransactionVolume(gctx, year.Format(dateLayout))
		return err
	})
	g.Go(func() (err error) {
		daily, err = s.repo.DailyTransactions(gctx, month.Format(dateLayout))
		return err
	})
	g.Go(func() (err error) {
		m.TopInstitutions, err = s.repo.TopInstitutions(gctx, topInstitutions)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to collect metrics", zap.Error(err))
		return nil, err
	}

	m.Totals = Totals{
		Users:                 len(signups),
		ConnectedInstitutions: totals.Items,
		ConnectedAccounts:     totals.Accounts,
		Recurring:             totals.Recurring,
		Goals:                 totals.Goals,
		Insights7d:            totals.Insights7d,
		Insights30d:           totals.Insights30d,
		ActiveSubscriptions:   totals.ActiveSubscriptions,
	}
	for _, t := range signups {
		if !t.Before(week) {
			m.Activity.NewUsers7d++
		}
		if !t.Before(month) {
			m.Activity.NewUsers30d++
		}
	}
	m.Volume = Volume{
		Transactions30dCount: vol30.Count,
		Transactions30dTotal: vol30.Total.InexactFloat64(),
		Transactions12mCount: vol12.Count,
		Transactions12mTotal: vol12.Total.InexactFloat64(),
	}
	m.Trends = Trends{
		SignupsLast14Days:      signupTrend(now, signups),
		TransactionsLast30Days: transactionTrend(now, daily),
	}
	if m.TopInstitutions == nil {
		m.TopInstitutions = []InstitutionCount{}
	}

	return &m, nil
}

// signupTrend buckets signups per UTC day, oldest first, today included.
func signupTrend(now time.Time, signups []time.Time) []DailyCount {
	counts := make(map[string]int, len(signups))
	for _, t := range signups {
		counts[t.Format(dateLayout)]++
	}

	out := make([]DailyCount, signupTrendDays)
	for i := range out {
		date := now.AddDate(0, 0, i-(signupTrendDays-1)).Format(dateLayout)
		out[i] = DailyCount{Date: date, Count: counts[date]}
	}
	return out
}

// transactionTrend fills the last 30 days, zero where no row exists.
func transactionTrend(now time.Time, rows []VolumeRow) []DailyVolume {
	byDate := make(map[string]VolumeRow, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	out := make([]DailyVolume, txnTrendDays)
	for i := range out {
		date := now.AddDate(0, 0, i-(txnTrendDays-1)).Format(dateLayout)
		r := byDate[date]
		out[i] = DailyVolume{Date: date, Count: r.Count, Total: r.Total.InexactFloat64()}
	}
	return out
}
