package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"keepmore/internal/domain/embedding"
)

// EmbeddingBatcher is implemented by *embedding.Service.
type EmbeddingBatcher interface {
	Batch(ctx context.Context, p embedding.BatchParams) (*embedding.Stats, error)
}

type EmbeddingHandler struct {
	batcher EmbeddingBatcher
	logger  *zap.Logger
}

func NewEmbeddingHandler(batcher EmbeddingBatcher, logger *zap.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{batcher: batcher, logger: logger.Named("embedding_handler")}
}

type embeddingBatchRequest struct {
	UserID      string `json:"userId"`
	BatchSize   int    `json:"batchSize" validate:"gte=0"`
	SourceTable string `json:"sourceTable"`
}

type embeddingBatchResponse struct {
	Success bool             `json:"success"`
	Stats   *embedding.Stats `json:"stats"`
	Message string           `json:"message"`
}

func (h *EmbeddingHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req embeddingBatchRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source, err := embedding.ParseSource(req.SourceTable)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.batcher.Batch(r.Context(), embedding.BatchParams{
		UserID:    req.UserID,
		BatchSize: req.BatchSize,
		Source:    source,
	})
	switch {
	case errors.Is(err, embedding.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, embedding.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		requestLogger(r, h.logger).Error("embedding batch failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, embeddingBatchResponse{
		Success: true,
		Stats:   stats,
		Message: fmt.Sprintf("Processed %d records in %dms", stats.Processed(), stats.TotalTime),
	})
}
