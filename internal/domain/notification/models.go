package notification

import (
	"errors"
	"time"
)

// RouteSync opens the accounts screen in the app.
const RouteSync = "sync"

var ErrInvalidUser = errors.New("user id is required")

// DeviceToken represents a registered FCM device token
type DeviceToken struct {
	ID        string
	UserID    string
	Token     string
	Platform  string
	IsActive  bool
	CreatedAt time.Time
	LastUsed  time.Time
}
