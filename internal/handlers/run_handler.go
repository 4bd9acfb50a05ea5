package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runner"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/scheduler"
)

var runRequestValidator = validator.New()

// RunRequest is the POST /api/run body. Scope can be given as explicit pairs
// or as brand/purchaser selections resolved against the configured tenancy.
type RunRequest struct {
	CaseID       string             `json:"case_id" validate:"required"`
	SyncLimit    int                `json:"sync_limit" validate:"gte=0"`
	ExtractLimit int                `json:"extract_limit" validate:"gte=0"`
	Pairs        []models.ScopePair `json:"pairs"`
	Brands       []string           `json:"brands"`
	Purchasers   []string           `json:"purchasers"`
	Resume       bool               `json:"resume"`
}

// StopRequest is the POST /api/run/stop body. Origin is optional; when empty
// the active run of the case is stopped regardless of how it was started.
type StopRequest struct {
	CaseID string           `json:"case_id" validate:"required"`
	Origin models.RunOrigin `json:"origin"`
}

type RunHandler struct {
	config *common.Config
	runner *runner.Service
	logger arbor.ILogger
}

func NewRunHandler(config *common.Config, runnerService *runner.Service) *RunHandler {
	return &RunHandler{
		config: config,
		runner: runnerService,
		logger: common.GetLogger(),
	}
}

// RunHandler streams a case execution as NDJSON progress events terminated by
// a result event. Closing the connection stops the underlying run: the
// request context cancellation propagates to the worker process.
func (h *RunHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req RunRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if err := runRequestValidator.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid run request: "+err.Error())
		return
	}

	// pre-flight checks so protocol errors surface as proper status codes
	// instead of mid-stream events
	template := h.runner.Template(req.CaseID)
	if template == nil {
		WriteError(w, http.StatusBadRequest, "Unknown case: "+req.CaseID)
		return
	}
	if req.Resume && !template.Resumable {
		WriteError(w, http.StatusBadRequest, "Case does not support resume: "+req.CaseID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	params := models.RunParams{
		SyncLimit:    req.SyncLimit,
		ExtractLimit: req.ExtractLimit,
		Pairs:        h.resolvePairs(&req),
		Resume:       req.Resume,
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var writeMu sync.Mutex
	encoder := json.NewEncoder(w)
	writeEvent := func(event models.ProgressEvent) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := encoder.Encode(event); err != nil {
			return
		}
		flusher.Flush()
	}

	result, err := h.runner.Execute(r.Context(), req.CaseID, models.OriginManual, params, writeEvent)
	if err != nil {
		status := "error"
		if errors.Is(err, runner.ErrBusy) {
			status = "busy"
		}
		writeEvent(models.ProgressEvent{
			Type:    models.EventError,
			Message: err.Error(),
			Payload: status,
		})
		return
	}

	// terminal event carries the full result
	payload, _ := json.Marshal(result)
	writeEvent(models.ProgressEvent{
		Type:    models.EventResult,
		Payload: string(payload),
	})
}

// StopHandler cancels the active run of a case
func (h *RunHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req StopRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if err := runRequestValidator.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid stop request: "+err.Error())
		return
	}

	found, err := h.runner.Stop(req.CaseID, req.Origin)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		WriteError(w, http.StatusNotFound, "No active run for case: "+req.CaseID)
		return
	}

	h.logger.Info().Str("case_id", req.CaseID).Msg("Stop requested via API")
	WriteSuccess(w, "Stop signal sent")
}

// CasesHandler lists the known case templates
func (h *RunHandler) CasesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cases": h.runner.Templates(),
	})
}

// resolvePairs turns the request scope into concrete pairs. Explicit pairs
// win; otherwise brand/purchaser selections are intersected with the tenancy
// table the same way scheduled runs are scoped.
func (h *RunHandler) resolvePairs(req *RunRequest) []models.ScopePair {
	if len(req.Pairs) > 0 {
		return req.Pairs
	}
	if len(req.Brands) == 0 && len(req.Purchasers) == 0 {
		return nil
	}
	return scheduler.ResolveScope(&models.Schedule{
		Brands:     req.Brands,
		Purchasers: req.Purchasers,
	}, h.config.Tenancy.Brands)
}
