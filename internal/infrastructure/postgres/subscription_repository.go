package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"keepmore/internal/domain/subscription"
)

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// UpsertEvent stores one webhook delivery. A redelivered event overwrites its row.
func (r *SubscriptionRepository) UpsertEvent(ctx context.Context, rec subscription.Record) error {
	query := `
		INSERT INTO revenuecat_events (
			event_id, app_user_id, type, product_id, entitlement_id, store, environment,
			period_type, purchased_at, expiration_at, event_timestamp, payload, received_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO UPDATE
			SET app_user_id = EXCLUDED.app_user_id,
			    type = EXCLUDED.type,
			    product_id = EXCLUDED.product_id,
			    entitlement_id = EXCLUDED.entitlement_id,
			    store = EXCLUDED.store,
			    environment = EXCLUDED.environment,
			    period_type = EXCLUDED.period_type,
			    purchased_at = EXCLUDED.purchased_at,
			    expiration_at = EXCLUDED.expiration_at,
			    event_timestamp = EXCLUDED.event_timestamp,
			    payload = EXCLUDED.payload,
			    received_at = EXCLUDED.received_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.EventID, rec.AppUserID, rec.Type, rec.ProductID, rec.EntitlementID, rec.Store, rec.Environment,
		rec.PeriodType, rec.PurchasedAt, rec.ExpirationAt, rec.EventTimestamp, jsonParam(rec.Payload), rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert revenuecat event: %w", err)
	}
	return nil
}

// UpsertState writes the subscription row. With onlyNewer the conflict
// update is guarded by latest_event_at, and a skipped write affects no rows.
func (r *SubscriptionRepository) UpsertState(ctx context.Context, st subscription.State, onlyNewer bool) (bool, error) {
	query := `
		INSERT INTO revenuecat_subscriptions (
			app_user_id, entitlement_id, product_id, store, period_type, environment, purchased_at,
			expiration_at, is_active, latest_event_id, latest_event_type, latest_event_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (app_user_id) DO UPDATE
			SET entitlement_id = EXCLUDED.entitlement_id,
			    product_id = EXCLUDED.product_id,
			    store = EXCLUDED.store,
			    period_type = EXCLUDED.period_type,
			    environment = EXCLUDED.environment,
			    purchased_at = EXCLUDED.purchased_at,
			    expiration_at = EXCLUDED.expiration_at,
			    is_active = EXCLUDED.is_active,
			    latest_event_id = EXCLUDED.latest_event_id,
			    latest_event_type = EXCLUDED.latest_event_type,
			    latest_event_at = EXCLUDED.latest_event_at,
			    updated_at = EXCLUDED.updated_at
			WHERE NOT $14::boolean
			   OR revenuecat_subscriptions.latest_event_at IS NULL
			   OR EXCLUDED.latest_event_at >= revenuecat_subscriptions.latest_event_at
	`

	result, err := r.db.ExecContext(ctx, query,
		st.AppUserID, st.EntitlementID, st.ProductID, st.Store, st.PeriodType, st.Environment, st.PurchasedAt,
		st.ExpirationAt, st.IsActive, st.LatestEventID, st.LatestEventType, st.LatestEventAt, st.UpdatedAt,
		onlyNewer,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert subscription state: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SubscriptionRepository) GetState(ctx context.Context, appUserID string) (*subscription.State, error) {
	query := `
		SELECT app_user_id, entitlement_id, product_id, store, period_type, environment, purchased_at,
		       expiration_at, is_active, latest_event_id, latest_event_type, latest_event_at, updated_at
		FROM revenuecat_subscriptions
		WHERE app_user_id = $1
	`

	var st subscription.State
	var latestAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, appUserID).Scan(
		&st.AppUserID, &st.EntitlementID, &st.ProductID, &st.Store, &st.PeriodType, &st.Environment, &st.PurchasedAt,
		&st.ExpirationAt, &st.IsActive, &st.LatestEventID, &st.LatestEventType, &latestAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription state: %w", err)
	}

	st.LatestEventAt = latestAt.Time
	return &st, nil
}
