package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"keepmore/internal/domain/item"
	"keepmore/internal/domain/plaidsync"
)

// ItemSyncer syncs one item. *plaidsync.Engine implements it.
type ItemSyncer interface {
	SyncItem(ctx context.Context, it *item.Item, resources []plaidsync.Resource) plaidsync.ItemResult
}

// ItemLister lists the items of one kind. *item.Service implements it.
type ItemLister interface {
	List(ctx context.Context, kind item.Kind, userID string) ([]*item.Item, error)
}

// ItemSyncJob syncs every resource of a single Plaid item.
type ItemSyncJob struct {
	item   *item.Item
	syncer ItemSyncer
	logger *zap.Logger
}

func NewItemSyncJob(it *item.Item, syncer ItemSyncer, logger *zap.Logger) *ItemSyncJob {
	return &ItemSyncJob{item: it, syncer: syncer, logger: logger}
}

// Execute fails when any sub-resource of the item failed.
func (j *ItemSyncJob) Execute(ctx context.Context) error {
	res := j.syncer.SyncItem(ctx, j.item, plaidsync.ResourcesFor(j.item.Kind))
	if !res.Success {
		failed := 0
		for name, r := range res.Results {
			if r != nil && !r.Success {
				failed++
				j.logger.Warn("resource sync failed",
					zap.String("plaid_item_id", j.item.ID),
					zap.String("resource", string(name)),
					zap.String("error", r.Error),
				)
			}
		}
		if res.Error != "" {
			return fmt.Errorf("item sync failed: %s", res.Error)
		}
		return fmt.Errorf("item sync completed with %d failed resources", failed)
	}

	j.logger.Info("item synced",
		zap.String("plaid_item_id", j.item.ID),
		zap.Int("new_transactions", res.Inserted(plaidsync.ResourceTransactions)),
	)
	return nil
}

func (j *ItemSyncJob) UserID() string {
	return j.item.UserID
}

func (j *ItemSyncJob) Description() string {
	return fmt.Sprintf("%s sync for item %s", j.item.Kind, j.item.ID)
}

// ItemJobProvider returns a job provider that emits one ItemSyncJob per
// banking and investment item.
func ItemJobProvider(items ItemLister, syncer ItemSyncer, logger *zap.Logger) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		var jobs []Job
		for _, kind := range []item.Kind{item.KindBanking, item.KindInvestments} {
			list, err := items.List(ctx, kind, "")
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", kind.Table(), err)
			}
			for _, it := range list {
				jobs = append(jobs, NewItemSyncJob(it, syncer, logger))
			}
		}
		return jobs, nil
	}
}
