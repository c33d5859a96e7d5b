package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/factgraph/internal/api/middleware"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"github.com/Harshitk-cp/factgraph/internal/store"
)

const maxBatchBytes = 10 << 20

type BatchHandler struct {
	runner *service.Runner
}

func NewBatchHandler(runner *service.Runner) *BatchHandler {
	return &BatchHandler{runner: runner}
}

// submitBatchRequest is the complete current state of the client's source.
// An empty facts list withdraws everything the source asserted before.
type submitBatchRequest struct {
	Facts []domain.ProvableFact `json:"facts"`
}

func (h *BatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	client := middleware.ClientFromContext(r.Context())
	if client == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitBatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.runner.Submit(r.Context(), client.SourceID, req.Facts)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptySourceID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrSerialization):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrInvariantViolation):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to ingest batch")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}
