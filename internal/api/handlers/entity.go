package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/api/middleware"
	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/Harshitk-cp/factgraph/internal/service"
	"github.com/go-chi/chi/v5"
)

const attrParamPrefix = "attr."

type EntityHandler struct {
	svc *service.QueryService
}

func NewEntityHandler(svc *service.QueryService) *EntityHandler {
	return &EntityHandler{svc: svc}
}

// List filters by ?kind=, ?limit= and any number of ?attr.<name>=<value>.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.EntityFilter{Equals: map[string]string{}}

	if kind := q.Get("kind"); kind != "" {
		if !domain.ValidEntityKind(kind) {
			writeError(w, http.StatusBadRequest, "invalid kind")
			return
		}
		filter.Kind = domain.EntityKind(kind)
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = n
	}
	for key, values := range q {
		if name, ok := strings.CutPrefix(key, attrParamPrefix); ok && name != "" && len(values) > 0 {
			filter.Equals[name] = values[0]
		}
	}

	entities, err := h.svc.ListEntities(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	if entities == nil {
		entities = []domain.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.svc.GetEntity(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (h *EntityHandler) Provenance(w http.ResponseWriter, r *http.Request) {
	edges, err := h.svc.Provenance(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get provenance")
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

// SourceClaims lists the edges of ?source=, defaulting to the caller's own
// source. Source ids are often URLs, hence the query parameter.
func (h *EntityHandler) SourceClaims(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source")
	if c := middleware.ClientFromContext(r.Context()); sourceID == "" && c != nil {
		sourceID = c.SourceID
	}
	edges, err := h.svc.SourceClaims(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, service.ErrEmptySourceID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	if edges == nil {
		edges = []domain.ProvenanceEdge{}
	}
	writeJSON(w, http.StatusOK, edges)
}

func (h *EntityHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.svc.Relationships(r.Context(), r.URL.Query().Get("relation"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list relationships")
		return
	}
	if rels == nil {
		rels = []domain.InferredRelationship{}
	}
	writeJSON(w, http.StatusOK, rels)
}
