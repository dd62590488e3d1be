package item

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"keepmore/internal/infrastructure/plaid"
)

// PlaidLinker is the subset of the Plaid client the item service needs.
type PlaidLinker interface {
	CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// Service contains the business logic for linking and unlinking items
type Service struct {
	repo    Repository
	plaid   PlaidLinker
	cipher  Cipher
	cascade map[Kind][]ScopedDeleter
	link    LinkConfig
	logger  *zap.Logger
}

// NewService creates a new item service. cascade lists, per kind, the
// repositories whose rows are removed before the item row on unlink.
func NewService(repo Repository, linker PlaidLinker, cipher Cipher, cascade map[Kind][]ScopedDeleter, link LinkConfig, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		plaid:   linker,
		cipher:  cipher,
		cascade: cascade,
		link:    link,
		logger:  logger.Named("item"),
	}
}

// CreateLinkToken builds a Plaid Link token for the user's platform.
func (s *Service) CreateLinkToken(ctx context.Context, params LinkTokenParams) (*plaid.LinkTokenResponse, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}

	req := plaid.LinkTokenRequest{
		ClientName:   s.link.ClientName,
		Language:     "en",
		CountryCodes: s.link.CountryCodes,
		User:         plaid.LinkUser{ClientUserID: params.UserID},
		Products:     s.link.Products,
		Webhook:      s.link.WebhookURL,
	}

	switch strings.ToLower(params.Platform) {
	case "ios":
		req.RedirectURI = s.link.RedirectURI
	case "android":
		req.AndroidPackageName = s.link.AndroidPackageName
	}

	resp, err := s.plaid.CreateLinkToken(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return resp, nil
}

// Exchange trades a public token for an access credential and stores it
// encrypted. The credential is never returned.
func (s *Service) Exchange(ctx context.Context, kind Kind, params ExchangeParams) (*ExchangeResult, error) {
	if params.PublicToken == "" {
		return nil, fmt.Errorf("%w: publicToken is required", ErrValidation)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	exchange, err := s.plaid.ExchangePublicToken(ctx, params.PublicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	sealed, err := s.cipher.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	stored, err := s.repo.Upsert(ctx, kind, CreateParams{
		UserID:          params.UserID,
		AccessToken:     sealed,
		ItemID:          exchange.ItemID,
		InstitutionID:   params.InstitutionID,
		InstitutionName: params.InstitutionName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save plaid item: %w", err)
	}

	s.logger.Info("item linked",
		zap.String("kind", string(kind)),
		zap.String("user_id", params.UserID),
		zap.String("plaid_item_id", stored.ID),
		zap.String("institution", params.InstitutionName),
	)

	return &ExchangeResult{
		ItemID:      exchange.ItemID,
		PlaidItemID: stored.ID,
		RequestID:   exchange.RequestID,
	}, nil
}

// Unlink revokes the credential at Plaid and deletes the item's local data.
// A Plaid failure aborts before anything is deleted.
func (s *Service) Unlink(ctx context.Context, kind Kind, userID, id string) error {
	if userID == "" || id == "" {
		return fmt.Errorf("%w: userId and plaidItemId are required", ErrValidation)
	}

	it, err := s.repo.GetForUser(ctx, kind, id, userID)
	if err != nil {
		return err
	}

	if it.AccessToken != "" {
		accessToken, err := s.cipher.Decrypt(it.AccessToken)
		if err != nil {
			return fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if err := s.plaid.RemoveItem(ctx, accessToken); err != nil {
			return fmt.Errorf("failed to remove item at plaid: %w", err)
		}
	}

	for _, d := range s.cascade[kind] {
		n, err := d.DeleteByItem(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("failed to delete item data: %w", err)
		}
		s.logger.Debug("deleted item rows", zap.String("plaid_item_id", it.ID), zap.Int64("rows", n))
	}

	if err := s.repo.Delete(ctx, kind, it.ID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	s.logger.Info("item unlinked", zap.String("kind", string(kind)), zap.String("user_id", userID), zap.String("plaid_item_id", it.ID))
	return nil
}

// Get loads one item by row id.
func (s *Service) Get(ctx context.Context, kind Kind, id string) (*Item, error) {
	return s.repo.Get(ctx, kind, id)
}

// List returns the items to sync for the given kind, optionally for one user.
func (s *Service) List(ctx context.Context, kind Kind, userID string) ([]*Item, error) {
	return s.repo.List(ctx, kind, userID)
}

// MarkSynced records a completed sync attempt.
func (s *Service) MarkSynced(ctx context.Context, it *Item, at time.Time) error {
	return s.repo.MarkSynced(ctx, it.Kind, it.ID, at)
}

// AccessToken decrypts the item's credential.
func (s *Service) AccessToken(it *Item) (string, error) {
	if it.AccessToken == "" {
		return "", fmt.Errorf("item %s has no access token", it.ID)
	}
	token, err := s.cipher.Decrypt(it.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}
