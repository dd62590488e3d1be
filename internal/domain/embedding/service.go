package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Service struct {
	repo     Repository
	embedder Embedder
	logger   *zap.Logger
}

// NewService accepts a nil embedder; Batch then fails with ErrNotConfigured.
func NewService(repo Repository, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{repo: repo, embedder: embedder, logger: logger.Named("embedding")}
}

// Batch embeds up to BatchSize rows of each selected source that have no
// embedding yet. Per-row failures are counted, never returned; a failure to
// load a source is.
func (s *Service) Batch(ctx context.Context, p BatchParams) (*Stats, error) {
	if s.embedder == nil {
		return nil, ErrNotConfigured
	}
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.BatchSize < 0 || p.BatchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: batchSize must be between 1 and %d", ErrValidation, MaxBatchSize)
	}

	start := time.Now()
	stats := &Stats{}

	if p.Source == "" || p.Source == SourceTransaction {
		rows, err := s.repo.Transactions(ctx, p.UserID, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
		stats.Transactions = embedRows(ctx, s, SourceTransaction, rows, func(r TransactionRow) Embedding {
			return Embedding{
				UserID:   r.UserID,
				SourceID: r.ID,
				Text:     TransactionText(r),
				Metadata: map[string]any{
					"amount":   r.Amount.InexactFloat64(),
					"date":     r.Date,
					"category": r.Category,
					"merchant": r.MerchantName,
				},
			}
		})
	}

	if p.Source == "" || p.Source == SourceInvestment {
		rows, err := s.repo.Investments(ctx, p.UserID, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load investments: %w", err)
		}
		stats.Investments = embedRows(ctx, s, SourceInvestment, rows, func(r InvestmentRow) Embedding {
			var value any
			if r.Value.Valid {
				value = r.Value.Decimal.InexactFloat64()
			}
			return Embedding{
				UserID:   r.UserID,
				SourceID: r.ID,
				Text:     InvestmentText(r),
				Metadata: map[string]any{
					"value":        value,
					"symbol":       r.Symbol,
					"account_type": r.AccountType,
				},
			}
		})
	}

	if p.Source == "" || p.Source == SourceRecurring {
		rows, err := s.repo.Recurring(ctx, p.UserID, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load recurring transactions: %w", err)
		}
		stats.Recurring = embedRows(ctx, s, SourceRecurring, rows, func(r RecurringRow) Embedding {
			return Embedding{
				UserID:   r.UserID,
				SourceID: r.ID,
				Text:     RecurringText(r),
				Metadata: map[string]any{
					"frequency": r.Frequency,
					"status":    r.Status,
				},
			}
		})
	}

	stats.TotalTime = time.Since(start).Milliseconds()
	s.logger.Info("embedding batch complete",
		zap.String("user_id", p.UserID),
		zap.Int("processed", stats.Processed()),
		zap.Int64("duration_ms", stats.TotalTime),
	)
	return stats, nil
}

// embedRows skips rows that already have an embedding and embeds the rest
// one at a time.
func embedRows[T any](ctx context.Context, s *Service, source Source, rows []T, build func(T) Embedding) SourceStats {
	var stats SourceStats
	if len(rows) == 0 {
		return stats
	}

	pending := make([]Embedding, len(rows))
	ids := make([]string, len(rows))
	for i, r := range rows {
		pending[i] = build(r)
		pending[i].Source = source
		ids[i] = pending[i].SourceID
	}

	log := s.logger.With(zap.String("source", string(source)))
	existing, err := s.repo.ExistingSourceIDs(ctx, source, ids)
	if err != nil {
		log.Error("failed to load existing embeddings", zap.Error(err))
		stats.Errors = len(rows)
		return stats
	}

	for _, e := range pending {
		if _, ok := existing[e.SourceID]; ok {
			stats.Skipped++
			continue
		}

		vec, err := s.embedder.Embed(ctx, e.Text)
		if err != nil {
			log.Warn("embedding failed", zap.String("source_id", e.SourceID), zap.Error(err))
			stats.Errors++
			continue
		}
		e.Vector = vec

		if err := s.repo.Insert(ctx, e); err != nil {
			log.Warn("failed to store embedding", zap.String("source_id", e.SourceID), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.Processed++
	}
	return stats
}
