package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"keepmore/internal/domain/user"
)

// AccountDeleter is implemented by *user.DeletionService.
type AccountDeleter interface {
	DeleteUser(ctx context.Context, userID string) (*user.DeletionReport, error)
}

type AccountHandler struct {
	deleter AccountDeleter
	logger  *zap.Logger
}

func NewAccountHandler(deleter AccountDeleter, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{deleter: deleter, logger: logger.Named("account_handler")}
}

type deleteAccountRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// HandleDelete closes an account. Per-table failures are logged by the
// service; only a failed identity deletion fails the request.
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.deleter.DeleteUser(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requestLogger(r, h.logger).Info("account deleted", zap.String("user_id", req.UserID), zap.Int("failed_tables", report.FailedTables))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
