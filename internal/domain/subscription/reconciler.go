package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	webhookMeter       = otel.Meter("keepmore/subscription")
	eventsProcessed, _ = webhookMeter.Int64Counter("revenuecat.events", metric.WithDescription("Webhook events processed, by type and outcome"))
)

// Options configures the reconciler.
type Options struct {
	// SkipStaleEvents keeps an older event from overwriting a newer state.
	SkipStaleEvents bool
}

type Reconciler struct {
	repo   Repository
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

func NewReconciler(repo Repository, opts Options, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		opts:   opts,
		now:    time.Now,
		logger: logger.Named("revenuecat"),
	}
}

// Process records the event and then the state it implies. A failed event
// write stops before the state is touched, so a retried delivery starts over.
func (r *Reconciler) Process(ctx context.Context, ev Event) (*State, error) {
	if err := validate(ev); err != nil {
		r.count(ctx, ev.Type, "invalid")
		return nil, err
	}

	now := r.now().UTC()
	eventID := ev.IdempotencyKey()
	log := r.logger.With(
		zap.String("event_id", eventID),
		zap.String("event_type", ev.Type),
		zap.String("app_user_id", ev.AppUserID),
	)

	rec := Record{
		EventID:        eventID,
		AppUserID:      ev.AppUserID,
		Type:           ev.Type,
		ProductID:      optional(ev.ProductID),
		EntitlementID:  optional(ev.PrimaryEntitlement()),
		Store:          optional(ev.Store),
		Environment:    optional(ev.Environment),
		PeriodType:     optional(ev.PeriodType),
		PurchasedAt:    millis(ev.PurchasedAtMs),
		ExpirationAt:   millis(ev.ExpirationAtMs),
		EventTimestamp: millis(ev.EventTimestampMs),
		Payload:        ev.Raw,
		ReceivedAt:     now,
	}
	if err := r.repo.UpsertEvent(ctx, rec); err != nil {
		log.Error("failed to record event", zap.Error(err))
		r.count(ctx, ev.Type, "error")
		return nil, fmt.Errorf("failed to record event: %w", err)
	}

	latestAt := now
	if rec.EventTimestamp != nil {
		latestAt = *rec.EventTimestamp
	}
	state := State{
		AppUserID:       ev.AppUserID,
		EntitlementID:   rec.EntitlementID,
		ProductID:       rec.ProductID,
		Store:           rec.Store,
		PeriodType:      rec.PeriodType,
		Environment:     rec.Environment,
		PurchasedAt:     rec.PurchasedAt,
		ExpirationAt:    rec.ExpirationAt,
		IsActive:        ev.IsActive(now),
		LatestEventID:   eventID,
		LatestEventType: ev.Type,
		LatestEventAt:   latestAt,
		UpdatedAt:       now,
	}

	applied, err := r.repo.UpsertState(ctx, state, r.opts.SkipStaleEvents)
	if err != nil {
		log.Error("failed to update subscription state", zap.Error(err))
		r.count(ctx, ev.Type, "error")
		return nil, fmt.Errorf("failed to update subscription state: %w", err)
	}
	if !applied {
		log.Info("stale event recorded without changing state", zap.Time("event_at", latestAt))
		r.count(ctx, ev.Type, "stale")
		return &state, nil
	}

	log.Info("subscription state updated", zap.Bool("is_active", state.IsActive))
	r.count(ctx, ev.Type, "applied")
	return &state, nil
}

// State returns the stored subscription of a user, nil when there is none.
func (r *Reconciler) State(ctx context.Context, appUserID string) (*State, error) {
	if appUserID == "" {
		return nil, fmt.Errorf("%w: app user id is required", ErrValidation)
	}
	return r.repo.GetState(ctx, appUserID)
}

func validate(ev Event) error {
	var missing []error
	if ev.IdempotencyKey() == "" {
		missing = append(missing, ErrMissingEventID)
	}
	if ev.AppUserID == "" {
		missing = append(missing, errors.New("app_user_id is required"))
	}
	if ev.Type == "" {
		missing = append(missing, errors.New("type is required"))
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(missing...))
}

func (r *Reconciler) count(ctx context.Context, eventType, outcome string) {
	eventsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}
