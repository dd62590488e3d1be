package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

// memRepository keeps rows in maps keyed like the real unique constraints.
type memRepository struct {
	events   map[string]Record
	states   map[string]State
	eventErr error
	stateErr error
	writes   int
}

func newMemRepository() *memRepository {
	return &memRepository{events: map[string]Record{}, states: map[string]State{}}
}

func (m *memRepository) UpsertEvent(ctx context.Context, rec Record) error {
	if m.eventErr != nil {
		return m.eventErr
	}
	m.writes++
	m.events[rec.EventID] = rec
	return nil
}

func (m *memRepository) UpsertState(ctx context.Context, state State, onlyNewer bool) (bool, error) {
	if m.stateErr != nil {
		return false, m.stateErr
	}
	if cur, ok := m.states[state.AppUserID]; ok && onlyNewer && cur.LatestEventAt.After(state.LatestEventAt) {
		return false, nil
	}
	m.writes++
	m.states[state.AppUserID] = state
	return true, nil
}

func (m *memRepository) GetState(ctx context.Context, appUserID string) (*State, error) {
	if s, ok := m.states[appUserID]; ok {
		return &s, nil
	}
	return nil, nil
}

var processingTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(repo Repository, opts Options) *Reconciler {
	r := NewReconciler(repo, opts, zap.NewNop())
	r.now = func() time.Time { return processingTime }
	return r
}

func ms(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}

func TestEvent_IsActive(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"expired renewal", Event{Type: "RENEWAL", ExpirationAtMs: ms(processingTime.Add(-time.Minute))}, false},
		{"future expiration on cancellation", Event{Type: "CANCELLATION", ExpirationAtMs: ms(processingTime.Add(24 * time.Hour))}, true},
		{"expiration exactly now", Event{Type: "RENEWAL", ExpirationAtMs: ms(processingTime)}, false},
		{"renewal without expiration", Event{Type: "RENEWAL"}, true},
		{"cancellation without expiration", Event{Type: "CANCELLATION"}, false},
		{"expiration event", Event{Type: "EXPIRATION"}, false},
		{"temporary grant", Event{Type: "TEMPORARY_ENTITLEMENT_GRANT"}, true},
		{"test event", Event{Type: "TEST"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.IsActive(processingTime); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvent_Keys(t *testing.T) {
	if got := (Event{ID: "a", EventID: "b"}).IdempotencyKey(); got != "a" {
		t.Errorf("IdempotencyKey() = %q, want a", got)
	}
	if got := (Event{EventID: "b"}).IdempotencyKey(); got != "b" {
		t.Errorf("IdempotencyKey() = %q, want b", got)
	}
	if got := (Event{EntitlementIDs: []string{"pro", "plus"}}).PrimaryEntitlement(); got != "pro" {
		t.Errorf("PrimaryEntitlement() = %q, want pro", got)
	}
	if got := (Event{EntitlementID: "premium", EntitlementIDs: []string{"pro"}}).PrimaryEntitlement(); got != "premium" {
		t.Errorf("PrimaryEntitlement() = %q, want premium", got)
	}
}

func TestEvent_UnmarshalKeepsRaw(t *testing.T) {
	body := []byte(`{"api_version":"1.0","event":{"id":"evt_1","type":"RENEWAL","app_user_id":"u1","price":4.99}}`)

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.Event.ID != "evt_1" || p.Event.AppUserID != "u1" {
		t.Errorf("decoded event = %+v", p.Event)
	}

	var raw map[string]any
	if err := json.Unmarshal(p.Event.Raw, &raw); err != nil {
		t.Fatalf("raw is not JSON: %v", err)
	}
	if raw["price"] != 4.99 {
		t.Errorf("raw lost unknown fields: %v", raw)
	}
}

func TestReconciler_ProcessIsIdempotent(t *testing.T) {
	repo := newMemRepository()
	r := newTestReconciler(repo, Options{})
	ev := Event{
		ID:             "evt_1",
		Type:           "INITIAL_PURCHASE",
		AppUserID:      "user-1",
		ProductID:      "keepmore_monthly",
		EntitlementIDs: []string{"pro"},
		Store:          "APP_STORE",
		ExpirationAtMs: ms(processingTime.Add(30 * 24 * time.Hour)),
	}

	first, err := r.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	second, err := r.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("Process() second error = %v", err)
	}

	if len(repo.events) != 1 || len(repo.states) != 1 {
		t.Fatalf("rows = %d events, %d states, want 1 and 1", len(repo.events), len(repo.states))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second delivery changed state: %+v vs %+v", first, second)
	}

	state := repo.states["user-1"]
	if !state.IsActive || state.LatestEventID != "evt_1" || *state.EntitlementID != "pro" {
		t.Errorf("state = %+v", state)
	}
}

func TestReconciler_ProcessValidation(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		noID  bool
	}{
		{"missing ids", Event{Type: "RENEWAL", AppUserID: "u"}, true},
		{"missing user", Event{ID: "e", Type: "RENEWAL"}, false},
		{"missing type", Event{ID: "e", AppUserID: "u"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepository()
			_, err := newTestReconciler(repo, Options{}).Process(context.Background(), tt.event)

			if !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
			if errors.Is(err, ErrMissingEventID) != tt.noID {
				t.Errorf("ErrMissingEventID match = %v, want %v", !tt.noID, tt.noID)
			}
			if repo.writes != 0 {
				t.Errorf("writes = %d, want 0", repo.writes)
			}
		})
	}
}

func TestReconciler_EventFailureSkipsState(t *testing.T) {
	repo := newMemRepository()
	repo.eventErr = errors.New("connection refused")

	_, err := newTestReconciler(repo, Options{}).Process(context.Background(), Event{ID: "e", Type: "RENEWAL", AppUserID: "u"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.states) != 0 {
		t.Error("state written after event failure")
	}
}

func TestReconciler_StateFailure(t *testing.T) {
	repo := newMemRepository()
	repo.stateErr = errors.New("deadlock detected")

	_, err := newTestReconciler(repo, Options{}).Process(context.Background(), Event{ID: "e", Type: "RENEWAL", AppUserID: "u"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.events) != 1 {
		t.Error("event should be recorded before the state write")
	}
}

func TestReconciler_OutOfOrderDelivery(t *testing.T) {
	newer := Event{ID: "evt_new", Type: "CANCELLATION", AppUserID: "u", EventTimestampMs: ms(processingTime.Add(-time.Hour))}
	older := Event{ID: "evt_old", Type: "RENEWAL", AppUserID: "u", EventTimestampMs: ms(processingTime.Add(-2 * time.Hour))}

	t.Run("last processed wins by default", func(t *testing.T) {
		repo := newMemRepository()
		r := newTestReconciler(repo, Options{})
		r.Process(context.Background(), newer)
		r.Process(context.Background(), older)

		if got := repo.states["u"].LatestEventID; got != "evt_old" {
			t.Errorf("LatestEventID = %q, want evt_old", got)
		}
	})

	t.Run("stale guard keeps newer state", func(t *testing.T) {
		repo := newMemRepository()
		r := newTestReconciler(repo, Options{SkipStaleEvents: true})
		r.Process(context.Background(), newer)
		if _, err := r.Process(context.Background(), older); err != nil {
			t.Fatalf("stale event should not fail: %v", err)
		}

		if got := repo.states["u"].LatestEventID; got != "evt_new" {
			t.Errorf("LatestEventID = %q, want evt_new", got)
		}
		if len(repo.events) != 2 {
			t.Errorf("events = %d, want 2", len(repo.events))
		}
	})
}

func TestAuthorized(t *testing.T) {
	tests := []struct {
		header, secret string
		want           bool
	}{
		{"", "", true},
		{"anything", "", true},
		{"s3cret", "s3cret", true},
		{"Bearer s3cret", "s3cret", true},
		{"Bearer wrong", "s3cret", false},
		{"", "s3cret", false},
		{"Basic s3cret", "s3cret", false},
	}

	for _, tt := range tests {
		if got := Authorized(tt.header, tt.secret); got != tt.want {
			t.Errorf("Authorized(%q, %q) = %v, want %v", tt.header, tt.secret, got, tt.want)
		}
	}
}

func TestReconciler_State(t *testing.T) {
	repo := newMemRepository()
	repo.states["user-1"] = State{AppUserID: "user-1", IsActive: true, LatestEventID: "evt-9"}
	r := newTestReconciler(repo, Options{})

	st, err := r.State(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if st == nil || !st.IsActive || st.LatestEventID != "evt-9" {
		t.Errorf("State() = %+v", st)
	}

	st, err = r.State(context.Background(), "nobody")
	if err != nil || st != nil {
		t.Errorf("State(nobody) = %+v, %v; want nil, nil", st, err)
	}

	if _, err := r.State(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("State(\"\") error = %v, want ErrValidation", err)
	}
}
