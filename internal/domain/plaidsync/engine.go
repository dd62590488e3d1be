// Package plaidsync copies Plaid accounts, transactions, recurring streams and
// investment holdings into Postgres, one item at a time.
package plaidsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"keepmore/internal/domain/account"
	"keepmore/internal/domain/investment"
	"keepmore/internal/domain/item"
	"keepmore/internal/domain/recurring"
	"keepmore/internal/domain/transaction"
	"keepmore/internal/infrastructure/plaid"
)

const (
	DefaultBatchSize       = 100
	DefaultTransactionDays = 180

	markSyncedTimeout = 10 * time.Second
)

var (
	syncMeter       = otel.Meter("keepmore/plaidsync")
	itemsSynced, _  = syncMeter.Int64Counter("plaidsync.items", metric.WithDescription("Items synced, by outcome"))
	rowsWritten, _  = syncMeter.Int64Counter("plaidsync.rows", metric.WithDescription("Rows upserted, by resource and operation"))
	itemDuration, _ = syncMeter.Float64Histogram("plaidsync.item.duration", metric.WithDescription("Per-item sync duration"), metric.WithUnit("s"))
)

// ItemSource lists items and resolves their credentials. *item.Service implements it.
type ItemSource interface {
	List(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error)
	MarkSynced(ctx context.Context, it *item.Item, at time.Time) error
	AccessToken(it *item.Item) (string, error)
}

// Notifier is told about items whose sync brought in new transactions.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, userID, institutionName string, newTransactions int)
}

// Stores groups the repositories the engine writes to.
type Stores struct {
	Accounts     account.Repository
	Transactions transaction.Repository
	Recurring    recurring.Repository
	Holdings     investment.Repository
}

// Options tunes pagination and batching. Zero values take the defaults.
type Options struct {
	TransactionDays int
	PageSize        int
	MaxPages        int
	BatchSize       int
}

// Filter selects the items of one run. Empty Resources means every
// resource of the kind.
type Filter struct {
	UserID    string
	Kind      item.Kind
	Resources []Resource
}

type Engine struct {
	items    ItemSource
	client   plaid.ClientInterface
	stores   Stores
	notifier Notifier
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

func NewEngine(items ItemSource, client plaid.ClientInterface, stores Stores, opts Options, logger *zap.Logger) *Engine {
	if opts.TransactionDays <= 0 {
		opts.TransactionDays = DefaultTransactionDays
	}
	if opts.PageSize <= 0 {
		opts.PageSize = plaid.DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = plaid.DefaultMaxPages
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Engine{
		items:  items,
		client: client,
		stores: stores,
		opts:   opts,
		now:    time.Now,
		logger: logger.Named("plaidsync"),
	}
}

// SetNotifier enables sync-complete notifications.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SyncAll syncs every matching item in turn. One item's failure never stops
// the run; only a resource outside the kind or a failure to list items is
// returned as an error.
func (e *Engine) SyncAll(ctx context.Context, f Filter) (*RunResult, error) {
	start := time.Now()
	if f.Kind == "" {
		f.Kind = item.KindBanking
	}
	if err := checkResources(f.Kind, f.Resources); err != nil {
		return nil, err
	}

	items, err := e.items.List(ctx, f.Kind, f.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", f.Kind.Table(), err)
	}

	e.logger.Info("sync started",
		zap.String("kind", string(f.Kind)),
		zap.String("user_id", f.UserID),
		zap.Int("items", len(items)),
	)

	run := &RunResult{
		Success:     true,
		Message:     "Plaid sync completed",
		TotalItems:  len(items),
		ItemResults: make([]ItemResult, 0, len(items)),
	}
	if len(items) == 0 {
		run.Message = "No Plaid items to sync"
		if f.Kind == item.KindInvestments {
			run.Message = "No investment items to sync"
		}
	}

	resources := f.Resources
	if len(resources) == 0 {
		resources = ResourcesFor(f.Kind)
	}
	for _, it := range items {
		res := e.SyncItem(ctx, it, resources)
		if res.Success {
			run.ItemsSucceeded++
		} else {
			run.ItemsFailed++
		}
		run.ItemResults = append(run.ItemResults, res)
	}

	run.Duration = time.Since(start).Milliseconds()
	e.logger.Info("sync complete",
		zap.Int("succeeded", run.ItemsSucceeded),
		zap.Int("failed", run.ItemsFailed),
		zap.Int64("duration_ms", run.Duration),
	)
	return run, nil
}

// SyncItem runs the given sub-resources of one item concurrently, waits for
// all of them, then records last_synced_at whatever their outcome. The item
// succeeds only when every sub-resource and the timestamp write succeed.
func (e *Engine) SyncItem(ctx context.Context, it *item.Item, resources []Resource) ItemResult {
	start := time.Now()
	log := e.logger.With(
		zap.String("plaid_item_id", it.ID),
		zap.String("user_id", it.UserID),
		zap.String("institution", it.InstitutionName),
	)

	result := ItemResult{
		PlaidItemID:     it.ID,
		UserID:          it.UserID,
		InstitutionName: optional(it.InstitutionName),
	}

	accessToken, err := e.items.AccessToken(it)
	if err != nil {
		log.Error("cannot read access token", zap.Error(err))
		result.Error = err.Error()
		e.recordItem(ctx, result, start)
		return result
	}

	results := make([]*ResourceResult, len(resources))
	var g errgroup.Group
	for i, res := range resources {
		g.Go(func() error {
			results[i] = e.syncResource(ctx, it, accessToken, res)
			return nil
		})
	}
	g.Wait()

	result.Results = make(map[Resource]*ResourceResult, len(resources))
	var problems []string
	for i, res := range resources {
		rr := results[i]
		result.Results[res] = rr
		if !rr.Success {
			problems = append(problems, fmt.Sprintf("%s: %s", res, rr.Error))
		}
		log.Info("resource synced",
			zap.String("resource", string(res)),
			zap.Bool("success", rr.Success),
			zap.Int("count", rr.Count),
			zap.Int("inserted", rr.Inserted),
			zap.Int("updated", rr.Updated),
		)
	}

	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markSyncedTimeout)
	defer cancel()
	if err := e.items.MarkSynced(markCtx, it, e.now()); err != nil {
		log.Error("failed to update last_synced_at", zap.Error(err))
		problems = append(problems, "last_synced_at: "+err.Error())
	}

	result.Success = len(problems) == 0
	if !result.Success {
		result.Error = strings.Join(problems, "; ")
		log.Warn("item sync failed", zap.String("error", result.Error))
	}

	if n := result.Inserted(ResourceTransactions); n > 0 && e.notifier != nil {
		e.notifier.NotifySyncComplete(ctx, it.UserID, it.InstitutionName, n)
	}

	e.recordItem(ctx, result, start)
	return result
}

func (e *Engine) syncResource(ctx context.Context, it *item.Item, accessToken string, res Resource) *ResourceResult {
	var (
		rr  *ResourceResult
		err error
	)
	switch res {
	case ResourceAccounts:
		rr, err = e.syncAccounts(ctx, it, accessToken)
	case ResourceTransactions:
		rr, err = e.syncTransactions(ctx, it, accessToken)
	case ResourceRecurring:
		rr, err = e.syncRecurring(ctx, it, accessToken)
	case ResourceInvestments:
		rr, err = e.syncInvestments(ctx, it, accessToken)
	default:
		err = fmt.Errorf("unknown resource %q", res)
	}
	if err != nil {
		return failed(err)
	}

	resource := attribute.String("resource", string(res))
	rowsWritten.Add(ctx, int64(rr.Inserted), metric.WithAttributes(resource, attribute.String("op", "insert")))
	rowsWritten.Add(ctx, int64(rr.Updated), metric.WithAttributes(resource, attribute.String("op", "update")))
	return rr
}

func (e *Engine) recordItem(ctx context.Context, r ItemResult, start time.Time) {
	outcome := "success"
	if !r.Success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	itemsSynced.Add(ctx, 1, attrs)
	itemDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// errorMessage prefers Plaid's own message over the wrapped chain.
func errorMessage(err error) string {
	return plaid.Message(err, err.Error())
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
