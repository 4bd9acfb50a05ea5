package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/metrics"
)

type MetricsHandler struct {
	engine *metrics.Engine
	logger arbor.ILogger
}

func NewMetricsHandler(engine *metrics.Engine) *MetricsHandler {
	return &MetricsHandler{
		engine: engine,
		logger: common.GetLogger(),
	}
}

// MetricsHandler returns the metrics report for a run. Without a run_id
// parameter the current run is reported, falling back to the last completed.
func (h *MetricsHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	var (
		report *metrics.Report
		err    error
	)
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		report, err = h.engine.ReportForRun(r.Context(), runID)
	} else {
		report, err = h.engine.ReportForCurrentRun(r.Context())
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
