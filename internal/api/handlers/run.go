package handlers

import (
	"errors"
	"net/http"

	"github.com/Harshitk-cp/factgraph/internal/service"
)

type RunHandler struct {
	runner *service.Runner
}

func NewRunHandler(runner *service.Runner) *RunHandler {
	return &RunHandler{runner: runner}
}

// Run pulls every configured source, or the ones named by repeated
// ?source= parameters, and reports each of them.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context(), r.URL.Query()["source"])
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to run sources")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RunHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Rebuild(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
