package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"keepmore/internal/infrastructure/supabase"
)

// DeletionService closes accounts.
type DeletionService struct {
	data     DataRepository
	identity IdentityDeleter
	tables   []Table
	logger   *zap.Logger
}

func NewDeletionService(data DataRepository, identity IdentityDeleter, logger *zap.Logger) *DeletionService {
	return &DeletionService{
		data:     data,
		identity: identity,
		tables:   ScopedTables,
		logger:   logger.Named("account-deletion"),
	}
}

// DeleteUser sweeps every scoped table, logging and moving past failures,
// and only then deletes the identity. The identity deletion is the only
// step whose failure is returned. A missing identity counts as deleted so
// a retried request can finish.
func (s *DeletionService) DeleteUser(ctx context.Context, userID string) (*DeletionReport, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if err := uuid.Validate(userID); err != nil {
		return nil, fmt.Errorf("%w: userId must be a uuid", ErrValidation)
	}

	log := s.logger.With(zap.String("user_id", userID))
	report := &DeletionReport{UserID: userID, Tables: make([]TableResult, 0, len(s.tables))}

	for _, t := range s.tables {
		n, err := s.data.DeleteUserRows(ctx, t, userID)
		res := TableResult{Table: t.Name, Deleted: n}
		if err != nil {
			log.Warn("failed to delete user rows", zap.String("table", t.Name), zap.Error(err))
			res.Error = err.Error()
			report.FailedTables++
		}
		report.Tables = append(report.Tables, res)
	}

	err := s.identity.DeleteUser(ctx, userID)
	switch {
	case errors.Is(err, supabase.ErrUserNotFound):
		log.Info("identity already deleted")
	case err != nil:
		log.Error("failed to delete identity", zap.Error(err), zap.Int("failed_tables", report.FailedTables))
		return report, fmt.Errorf("failed to delete user: %w", err)
	}

	report.IdentityDeleted = true
	log.Info("account deleted", zap.Int("failed_tables", report.FailedTables))
	return report, nil
}
