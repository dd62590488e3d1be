package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"keepmore/internal/domain/subscription"
)

// EventProcessor is implemented by *subscription.Reconciler.
type EventProcessor interface {
	Process(ctx context.Context, ev subscription.Event) (*subscription.State, error)
}

type WebhookHandler struct {
	events EventProcessor
	secret string
	logger *zap.Logger
}

// NewWebhookHandler checks deliveries against secret; an empty secret accepts every delivery.
func NewWebhookHandler(events EventProcessor, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret, logger: logger.Named("webhook")}
}

// HandleRevenueCat records one RevenueCat event. Any non-2xx makes RevenueCat retry.
func (h *WebhookHandler) HandleRevenueCat(w http.ResponseWriter, r *http.Request) {
	if !subscription.Authorized(r.Header.Get("Authorization"), h.secret) {
		requestLogger(r, h.logger).Warn("rejected webhook", zap.Error(subscription.ErrUnauthorized))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload subscription.Payload
	if err := decodeBody(w, r, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.events.Process(r.Context(), payload.Event); err != nil {
		if errors.Is(err, subscription.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
