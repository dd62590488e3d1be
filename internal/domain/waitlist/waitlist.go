// Package waitlist records marketing-site signups.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var ErrValidation = errors.New("validation failed")

// Signup is one row of the waitlist table.
type Signup struct {
	Name    string
	Email   string
	Country string
}

// Repository stores signups; a duplicate email is not an error and reports created=false.
type Repository interface {
	Insert(ctx context.Context, s Signup) (created bool, err error)
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.Named("waitlist")}
}

// Join normalises and stores a signup. Joining twice with the same email succeeds.
func (s *Service) Join(ctx context.Context, in Signup) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	created, err := s.repo.Insert(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to join waitlist: %w", err)
	}
	s.logger.Info("waitlist signup", zap.String("country", in.Country), zap.Bool("created", created))
	return nil
}
