package subscription

import "context"

// Repository persists the event log and the subscription state.
type Repository interface {
	// UpsertEvent inserts the event, overwriting a row with the same event id
	UpsertEvent(ctx context.Context, rec Record) error

	// UpsertState writes the user's state. With onlyNewer set the write is
	// skipped when the stored latest_event_at is later; applied reports
	// whether the row changed.
	UpsertState(ctx context.Context, state State, onlyNewer bool) (applied bool, err error)

	// GetState returns nil when the user has no subscription row
	GetState(ctx context.Context, appUserID string) (*State, error)
}
