package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/events"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runner"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runstate"
)

type handlerCheckpoints struct {
	currentRun    string
	lastCompleted string
}

func (h *handlerCheckpoints) RecordResult(ctx context.Context, record *models.CheckpointRecord) error {
	return nil
}

func (h *handlerCheckpoints) GetRecordsForRun(ctx context.Context, runID string) ([]models.CheckpointRecord, error) {
	return nil, nil
}

func (h *handlerCheckpoints) GetCurrentRunID(ctx context.Context) (string, error) {
	return h.currentRun, nil
}

func (h *handlerCheckpoints) GetLastCompletedRunID(ctx context.Context) (string, error) {
	return h.lastCompleted, nil
}

func (h *handlerCheckpoints) SetCurrentRunID(ctx context.Context, runID string) error {
	h.currentRun = runID
	return nil
}

func (h *handlerCheckpoints) SetLastCompletedRunID(ctx context.Context, runID string) error {
	h.lastCompleted = runID
	return nil
}

func (h *handlerCheckpoints) CanResume(ctx context.Context, runID string) (bool, error) {
	return false, nil
}

func newRunHandler(t *testing.T, caseYAML string) *RunHandler {
	t.Helper()

	logger := arbor.NewLogger()
	config := common.DefaultConfig()
	config.Pipeline.WorkerBin = "/bin/sh"
	config.Pipeline.CasesDir = t.TempDir()
	config.Pipeline.RunStatePath = filepath.Join(t.TempDir(), "run-state.json")
	config.Tenancy.Brands = map[string][]string{"acme": {"north", "south"}}

	if caseYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(config.Pipeline.CasesDir, "case.yaml"), []byte(caseYAML), 0644))
	}

	checkpoints := &handlerCheckpoints{}
	tracker := runstate.NewTracker(config.Pipeline.RunStatePath,
		[]string{models.CaseFullPipeline, models.CaseSyncOnly, models.CaseExtractOnly},
		checkpoints, logger)
	runnerService, err := runner.NewService(config, registry.New(logger), tracker, checkpoints, events.NewService(logger), logger)
	require.NoError(t, err)

	return NewRunHandler(config, runnerService)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRunHandlerRejectsUnknownCase(t *testing.T) {
	h := newRunHandler(t, "")

	w := postJSON(t, h.RunHandler, "/api/run", map[string]string{"case_id": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown case")
}

func TestRunHandlerRejectsMissingCaseID(t *testing.T) {
	h := newRunHandler(t, "")

	w := postJSON(t, h.RunHandler, "/api/run", map[string]int{"sync_limit": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandlerRejectsResumeOnNonResumableCase(t *testing.T) {
	h := newRunHandler(t, "")

	w := postJSON(t, h.RunHandler, "/api/run", map[string]interface{}{
		"case_id": models.CaseReportOnly,
		"resume":  true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resume")
}

func TestRunHandlerRequiresPost(t *testing.T) {
	h := newRunHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/run", nil)
	w := httptest.NewRecorder()
	h.RunHandler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRunHandlerStreamsNDJSONWithTerminalResult(t *testing.T) {
	caseYAML := `id: sync-only
description: fake worker
args: ["-c", "printf '@@SYNC\t1\t2\n@@SYNC\t2\t2\n'"]
resumable: true
`
	h := newRunHandler(t, caseYAML)

	w := postJSON(t, h.RunHandler, "/api/run", map[string]string{"case_id": models.CaseSyncOnly})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var eventList []models.ProgressEvent
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event models.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event), "each line must be one JSON event")
		eventList = append(eventList, event)
	}

	require.GreaterOrEqual(t, len(eventList), 3)
	assert.Equal(t, models.EventSyncProgress, eventList[0].Type)

	terminal := eventList[len(eventList)-1]
	require.Equal(t, models.EventResult, terminal.Type)

	var result models.RunResult
	require.NoError(t, json.Unmarshal([]byte(terminal.Payload), &result))
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Interrupted)
	assert.Equal(t, models.CaseSyncOnly, result.CaseID)
}

func TestStopHandlerNoActiveRun(t *testing.T) {
	h := newRunHandler(t, "")

	w := postJSON(t, h.StopHandler, "/api/run/stop", map[string]string{"case_id": models.CaseSyncOnly})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCasesHandlerListsTemplates(t *testing.T) {
	h := newRunHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/cases", nil)
	w := httptest.NewRecorder()
	h.CasesHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Cases []models.CaseTemplate `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Cases, 5)
}

func TestResolvePairsExplicitPairsWin(t *testing.T) {
	h := newRunHandler(t, "")

	pairs := h.resolvePairs(&RunRequest{
		Pairs:  []models.ScopePair{{Brand: "acme", Purchaser: "north"}},
		Brands: []string{"acme"},
	})
	assert.Equal(t, []models.ScopePair{{Brand: "acme", Purchaser: "north"}}, pairs)
}

func TestResolvePairsFromBrandSelection(t *testing.T) {
	h := newRunHandler(t, "")

	pairs := h.resolvePairs(&RunRequest{Brands: []string{"acme"}})
	assert.Equal(t, []models.ScopePair{
		{Brand: "acme", Purchaser: "north"},
		{Brand: "acme", Purchaser: "south"},
	}, pairs)
}
