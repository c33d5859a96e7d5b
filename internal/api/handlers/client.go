package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/factgraph/internal/service"
)

type ClientHandler struct {
	svc *service.ClientService
}

func NewClientHandler(svc *service.ClientService) *ClientHandler {
	return &ClientHandler{svc: svc}
}

type createClientRequest struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
}

type createClientResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
	APIKey   string `json:"api_key"`
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, apiKey, err := h.svc.Register(r.Context(), req.Name, req.SourceID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNameEmpty), errors.Is(err, service.ErrEmptySourceID), errors.Is(err, service.ErrUnknownSource):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrClientConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create client")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createClientResponse{
		ID:       client.ID.String(),
		Name:     client.Name,
		SourceID: client.SourceID,
		APIKey:   apiKey,
	})
}
