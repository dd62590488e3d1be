package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"keepmore/internal/domain/item"
	"keepmore/internal/domain/plaidsync"
	"keepmore/internal/infrastructure/plaid"
)

// ItemLinker is implemented by *item.Service.
type ItemLinker interface {
	CreateLinkToken(ctx context.Context, params item.LinkTokenParams) (*plaid.LinkTokenResponse, error)
	Exchange(ctx context.Context, kind item.Kind, params item.ExchangeParams) (*item.ExchangeResult, error)
	Unlink(ctx context.Context, kind item.Kind, userID, id string) error
}

// Syncer is implemented by *plaidsync.Engine.
type Syncer interface {
	SyncAll(ctx context.Context, f plaidsync.Filter) (*plaidsync.RunResult, error)
}

type PlaidHandler struct {
	items        ItemLinker
	syncer       Syncer
	syncTimeout  time.Duration
	missingPlaid []string
	logger       *zap.Logger
}

// NewPlaidHandler wires the Plaid routes. missingPlaid names the Plaid
// settings that are not configured; link token creation refuses to run while
// it is non-empty.
func NewPlaidHandler(items ItemLinker, syncer Syncer, syncTimeout time.Duration, missingPlaid []string, logger *zap.Logger) *PlaidHandler {
	return &PlaidHandler{
		items:        items,
		syncer:       syncer,
		syncTimeout:  syncTimeout,
		missingPlaid: missingPlaid,
		logger:       logger.Named("plaid_handler"),
	}
}

type createLinkTokenRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Platform string `json:"platform"`
}

type linkTokenResponse struct {
	LinkToken  string `json:"linkToken"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"requestId"`
}

func (h *PlaidHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := requestLogger(r, h.logger).With(zap.String("request_id", requestID))

	if len(h.missingPlaid) > 0 {
		log.Error("plaid is not configured", zap.Strings("missing", h.missingPlaid))
		writeError(w, http.StatusInternalServerError, "Plaid is not configured: missing "+strings.Join(h.missingPlaid, ", "))
		return
	}

	var req createLinkTokenRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.items.CreateLinkToken(r.Context(), item.LinkTokenParams{UserID: req.UserID, Platform: req.Platform})
	if err != nil {
		log.Error("link token creation failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, plaid.Message(err, "Failed to create link token"))
		return
	}

	log.Info("link token created",
		zap.String("user_id", req.UserID),
		zap.String("platform", req.Platform),
		zap.String("plaid_request_id", resp.RequestID),
		zap.String("expires_at", resp.Expiration),
	)
	writeJSON(w, http.StatusOK, linkTokenResponse{
		LinkToken:  resp.LinkToken,
		Expiration: resp.Expiration,
		RequestID:  resp.RequestID,
	})
}

type exchangeTokenRequest struct {
	PublicToken     string `json:"publicToken" validate:"required"`
	User            string `json:"user" validate:"required"`
	InstitutionID   string `json:"institutionId"`
	InstitutionName string `json:"institutionName"`
}

// HandleExchangeToken stores a banking link.
func (h *PlaidHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	h.exchange(w, r, item.KindBanking)
}

// HandleExchangeInvestmentToken stores an investment link.
func (h *PlaidHandler) HandleExchangeInvestmentToken(w http.ResponseWriter, r *http.Request) {
	h.exchange(w, r, item.KindInvestments)
}

func (h *PlaidHandler) exchange(w http.ResponseWriter, r *http.Request, kind item.Kind) {
	var req exchangeTokenRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.items.Exchange(r.Context(), kind, item.ExchangeParams{
		PublicToken:     req.PublicToken,
		UserID:          req.User,
		InstitutionID:   req.InstitutionID,
		InstitutionName: req.InstitutionName,
	})
	if err != nil {
		if errors.Is(err, item.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		requestLogger(r, h.logger).Error("token exchange failed", zap.String("kind", string(kind)), zap.String("user_id", req.User), zap.Error(err))
		writeError(w, http.StatusInternalServerError, plaid.Message(err, "Failed to exchange public token"))
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type removeItemRequest struct {
	UserID      string `json:"userId" validate:"required"`
	PlaidItemID string `json:"plaidItemId" validate:"required_without=ItemID"`
	ItemID      string `json:"itemId"`
	ItemType    string `json:"itemType"`
}

func (h *PlaidHandler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req removeItemRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "userId and plaidItemId are required")
		return
	}

	kind, err := item.ParseKind(req.ItemType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := req.PlaidItemID
	if id == "" {
		id = req.ItemID
	}

	err = h.items.Unlink(r.Context(), kind, req.UserID, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, item.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Plaid item not found")
	case errors.Is(err, item.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		requestLogger(r, h.logger).Error("failed to remove item", zap.String("plaid_item_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, plaid.Message(err, "Failed to remove Plaid item"))
	}
}

type syncRequest struct {
	UserID    string   `json:"userId"`
	Resources []string `json:"resources"`
}

type syncFailure struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Details  string `json:"details"`
	Duration int64  `json:"duration"`
}

// HandleSync walks the banking items: accounts, transactions and recurring streams.
func (h *PlaidHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	h.sync(w, r, item.KindBanking)
}

// HandleSyncInvestments walks the investment items for holdings.
func (h *PlaidHandler) HandleSyncInvestments(w http.ResponseWriter, r *http.Request) {
	h.sync(w, r, item.KindInvestments)
}

func (h *PlaidHandler) sync(w http.ResponseWriter, r *http.Request, kind item.Kind) {
	start := time.Now()

	var req syncRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := plaidsync.Filter{UserID: req.UserID, Kind: kind}
	for _, s := range req.Resources {
		res, err := plaidsync.ParseResource(kind, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Resources = append(filter.Resources, res)
	}

	ctx := r.Context()
	if h.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.syncTimeout)
		defer cancel()
	}

	result, err := h.syncer.SyncAll(ctx, filter)
	if errors.Is(err, plaidsync.ErrInvalidResource) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		requestLogger(r, h.logger).Error("sync failed", zap.String("kind", string(kind)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, syncFailure{
			Success:  false,
			Error:    "Failed to sync data",
			Details:  "Linked items could not be loaded",
			Duration: time.Since(start).Milliseconds(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
