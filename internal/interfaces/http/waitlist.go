package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"keepmore/internal/domain/waitlist"
)

// WaitlistJoiner is implemented by *waitlist.Service.
type WaitlistJoiner interface {
	Join(ctx context.Context, in waitlist.Signup) error
}

type WaitlistHandler struct {
	waitlist WaitlistJoiner
	logger   *zap.Logger
}

func NewWaitlistHandler(w WaitlistJoiner, logger *zap.Logger) *WaitlistHandler {
	return &WaitlistHandler{waitlist: w, logger: logger.Named("waitlist_handler")}
}

type waitlistRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Email   string `json:"email" validate:"required,email"`
	Country string `json:"country" validate:"omitempty,max=64"`
}

func (h *WaitlistHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req waitlistRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.waitlist.Join(r.Context(), waitlist.Signup{Name: req.Name, Email: req.Email, Country: req.Country})
	if err != nil {
		if errors.Is(err, waitlist.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		requestLogger(r, h.logger).Error("waitlist signup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to join waitlist")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}
