package notification

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"keepmore/internal/shared/messages"
)

// Service contains the business logic for push notifications
type Service struct {
	repo      Repository
	messenger Messenger
	texts     *messages.Messages
	logger    *zap.Logger
}

// NewService creates a new notification service. A nil messenger turns
// sends into no-ops.
func NewService(repo Repository, messenger Messenger, texts *messages.Messages, logger *zap.Logger) *Service {
	return &Service{repo: repo, messenger: messenger, texts: texts, logger: logger.Named("notification")}
}

// SendToUser sends a push notification to every active device of a user.
func (s *Service) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if s.messenger == nil {
		return nil
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.logger.Debug("no active device tokens", zap.String("user_id", userID))
		return nil
	}

	tokenStrings := make([]string, len(tokens))
	for i, t := range tokens {
		tokenStrings[i] = t.Token
	}

	return s.messenger.SendMulticast(ctx, tokenStrings, title, body, data)
}

// NotifySyncComplete tells the user a sync brought in new transactions.
// Failures are logged; a sync never fails because of a notification.
func (s *Service) NotifySyncComplete(ctx context.Context, userID, institutionName string, newTransactions int) {
	if institutionName == "" {
		institutionName = "your bank"
	}
	text := s.texts.SyncComplete
	body := fmt.Sprintf(text.Body, newTransactions, institutionName)

	data := map[string]string{
		"route":           RouteSync,
		"newTransactions": strconv.Itoa(newTransactions),
	}
	if err := s.SendToUser(ctx, userID, text.Title, body, data); err != nil {
		s.logger.Warn("sync notification failed", zap.String("user_id", userID), zap.Error(err))
	}
}
