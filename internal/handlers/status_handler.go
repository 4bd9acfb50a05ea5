package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/status"
)

type StatusHandler struct {
	status *status.Service
	logger arbor.ILogger
}

func NewStatusHandler(statusService *status.Service) *StatusHandler {
	return &StatusHandler{
		status: statusService,
		logger: common.GetLogger(),
	}
}

// StatusHandler returns the aggregate run status, or the per-case view when
// the case query parameter is present
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if caseID := r.URL.Query().Get("case"); caseID != "" {
		WriteJSON(w, http.StatusOK, h.status.ForCase(r.Context(), caseID))
		return
	}

	WriteJSON(w, http.StatusOK, h.status.Aggregate(r.Context()))
}
