package notification

import "context"

// Repository defines the interface for device token access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	GetActiveTokensByUserID(ctx context.Context, userID string) ([]*DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error
}
