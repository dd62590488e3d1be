// Package subscription reconciles RevenueCat webhook events into an event log
// and a per-user subscription state.
package subscription

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrMissingEventID = errors.New("event id is required")
	ErrUnauthorized   = errors.New("invalid webhook authorization")
)

// grantsAccess lists the event types that imply an active entitlement when
// the event carries no expiration.
var grantsAccess = map[string]struct{}{
	"INITIAL_PURCHASE":            {},
	"RENEWAL":                     {},
	"UNCANCELLATION":              {},
	"PRODUCT_CHANGE":              {},
	"NON_RENEWING_PURCHASE":       {},
	"SUBSCRIPTION_EXTENDED":       {},
	"TEMPORARY_ENTITLEMENT_GRANT": {},
	"TEST":                        {},
}

// Payload is the webhook body.
type Payload struct {
	APIVersion string `json:"api_version"`
	Event      Event  `json:"event"`
}

// Event is the subset of a RevenueCat event the reconciler reads. Raw keeps
// the full event for the log.
type Event struct {
	ID               string          `json:"id"`
	EventID          string          `json:"event_id"`
	Type             string          `json:"type"`
	AppUserID        string          `json:"app_user_id"`
	ProductID        string          `json:"product_id"`
	EntitlementID    string          `json:"entitlement_id"`
	EntitlementIDs   []string        `json:"entitlement_ids"`
	Store            string          `json:"store"`
	PeriodType       string          `json:"period_type"`
	Environment      string          `json:"environment"`
	ExpirationAtMs   *int64          `json:"expiration_at_ms"`
	PurchasedAtMs    *int64          `json:"purchased_at_ms"`
	EventTimestampMs *int64          `json:"event_timestamp_ms"`
	Raw              json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the original bytes.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// IdempotencyKey is id, falling back to event_id.
func (e Event) IdempotencyKey() string {
	if e.ID != "" {
		return e.ID
	}
	return e.EventID
}

// PrimaryEntitlement is entitlement_id, else the first of entitlement_ids.
func (e Event) PrimaryEntitlement() string {
	if e.EntitlementID != "" {
		return e.EntitlementID
	}
	if len(e.EntitlementIDs) > 0 {
		return e.EntitlementIDs[0]
	}
	return ""
}

// IsActive reports whether the event leaves the user entitled at now. An
// expiration decides on its own; without one the event type does.
func (e Event) IsActive(now time.Time) bool {
	if e.ExpirationAtMs != nil {
		return time.UnixMilli(*e.ExpirationAtMs).After(now)
	}
	_, ok := grantsAccess[e.Type]
	return ok
}

// Record is one row of revenuecat_events.
type Record struct {
	EventID        string
	AppUserID      string
	Type           string
	ProductID      *string
	EntitlementID  *string
	Store          *string
	Environment    *string
	PeriodType     *string
	PurchasedAt    *time.Time
	ExpirationAt   *time.Time
	EventTimestamp *time.Time
	Payload        json.RawMessage
	ReceivedAt     time.Time
}

// State is one row of revenuecat_subscriptions.
type State struct {
	AppUserID       string     `json:"appUserId"`
	EntitlementID   *string    `json:"entitlementId"`
	ProductID       *string    `json:"productId"`
	Store           *string    `json:"store"`
	PeriodType      *string    `json:"periodType"`
	Environment     *string    `json:"environment"`
	PurchasedAt     *time.Time `json:"purchasedAt"`
	ExpirationAt    *time.Time `json:"expirationAt"`
	IsActive        bool       `json:"isActive"`
	LatestEventID   string     `json:"latestEventId"`
	LatestEventType string     `json:"latestEventType"`
	LatestEventAt   time.Time  `json:"latestEventAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Authorized checks an Authorization header against the shared secret. The
// header may carry the secret bare or as a bearer token. An empty secret
// disables the check.
func Authorized(header, secret string) bool {
	if secret == "" {
		return true
	}
	presented := strings.TrimSpace(header)
	if token, ok := strings.CutPrefix(presented, "Bearer "); ok {
		presented = strings.TrimSpace(token)
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}

func millis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
