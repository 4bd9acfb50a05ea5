package status

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runstate"
)

type fakeCheckpoints struct {
	currentRun    string
	lastCompleted string
	records       []models.CheckpointRecord
}

func (f *fakeCheckpoints) RecordResult(ctx context.Context, record *models.CheckpointRecord) error {
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeCheckpoints) GetRecordsForRun(ctx context.Context, runID string) ([]models.CheckpointRecord, error) {
	var out []models.CheckpointRecord
	for _, r := range f.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCheckpoints) GetCurrentRunID(ctx context.Context) (string, error) {
	return f.currentRun, nil
}

func (f *fakeCheckpoints) GetLastCompletedRunID(ctx context.Context) (string, error) {
	return f.lastCompleted, nil
}

func (f *fakeCheckpoints) SetCurrentRunID(ctx context.Context, runID string) error {
	f.currentRun = runID
	return nil
}

func (f *fakeCheckpoints) SetLastCompletedRunID(ctx context.Context, runID string) error {
	f.lastCompleted = runID
	return nil
}

func (f *fakeCheckpoints) CanResume(ctx context.Context, runID string) (bool, error) {
	count := 0
	for _, r := range f.records {
		if r.RunID == runID {
			count++
		}
	}
	return count > 0 && runID != f.lastCompleted, nil
}

type nopStopper struct{}

func (nopStopper) Stop() error { return nil }

func newTestStatus(t *testing.T) (*Service, *fakeCheckpoints, *registry.Registry, *runstate.Tracker) {
	t.Helper()
	logger := arbor.NewLogger()
	checkpoints := &fakeCheckpoints{}
	reg := registry.New(logger)
	tracker := runstate.NewTracker(filepath.Join(t.TempDir(), "run-state.json"),
		[]string{models.CaseFullPipeline, models.CaseSyncOnly, models.CaseExtractOnly},
		checkpoints, logger)
	return NewService(checkpoints, nil, reg, tracker, logger), checkpoints, reg, tracker
}

func TestAggregateEmptyLedger(t *testing.T) {
	svc, _, _, _ := newTestStatus(t)

	agg := svc.Aggregate(context.Background())

	assert.False(t, agg.CanResume)
	assert.False(t, agg.IsBusy)
	assert.Equal(t, 0, agg.Total)
	assert.Empty(t, agg.RunID)
}

func TestAggregateCountsFromLedger(t *testing.T) {
	svc, checkpoints, _, tracker := newTestStatus(t)
	ctx := context.Background()

	checkpoints.currentRun = "run-1"
	checkpoints.records = []models.CheckpointRecord{
		{RunID: "run-1", ItemPath: "acme/a.pdf", Status: models.ItemStatusDone},
		{RunID: "run-1", ItemPath: "acme/b.pdf", Status: models.ItemStatusDone},
		{RunID: "run-1", ItemPath: "acme/c.pdf", Status: models.ItemStatusError},
		{RunID: "run-2", ItemPath: "acme/d.pdf", Status: models.ItemStatusDone},
	}

	require.NoError(t, tracker.MarkStarted(models.CaseSyncOnly, "run-1", models.RunParams{SyncLimit: 40}))
	require.NoError(t, tracker.MarkInterrupted(models.CaseSyncOnly, nil))

	agg := svc.Aggregate(ctx)

	assert.True(t, agg.CanResume)
	assert.Equal(t, "run-1", agg.RunID)
	assert.Equal(t, 3, agg.Total)
	assert.Equal(t, 2, agg.Done)
	assert.Equal(t, 1, agg.Failed)
	assert.Equal(t, 40, agg.SyncLimit)
}

func TestAggregateNotResumableAfterCompletion(t *testing.T) {
	svc, checkpoints, _, _ := newTestStatus(t)

	checkpoints.currentRun = "run-1"
	checkpoints.lastCompleted = "run-1"
	checkpoints.records = []models.CheckpointRecord{
		{RunID: "run-1", ItemPath: "acme/a.pdf", Status: models.ItemStatusDone},
	}

	agg := svc.Aggregate(context.Background())
	assert.False(t, agg.CanResume, "completed run must not be resumable")
}

func TestForCaseRunningAndResume(t *testing.T) {
	svc, checkpoints, reg, tracker := newTestStatus(t)
	ctx := context.Background()

	// an active run makes the case running
	require.NoError(t, reg.Register(&registry.ActiveRun{
		RunID:  "run-9",
		CaseID: models.CaseFullPipeline,
		Origin: models.OriginManual,
		Handle: nopStopper{},
	}))

	running := svc.ForCase(ctx, models.CaseFullPipeline)
	assert.True(t, running.IsRunning)
	assert.False(t, running.CanResume)

	// an interrupted run with records makes a different case resumable
	checkpoints.records = []models.CheckpointRecord{
		{RunID: "run-7", ItemPath: "acme/a.pdf", Status: models.ItemStatusDone},
	}
	require.NoError(t, tracker.MarkStarted(models.CaseSyncOnly, "run-7", models.RunParams{}))
	require.NoError(t, tracker.MarkInterrupted(models.CaseSyncOnly, nil))

	stopped := svc.ForCase(ctx, models.CaseSyncOnly)
	assert.False(t, stopped.IsRunning)
	assert.True(t, stopped.CanResume)
	require.NotNil(t, stopped.State)
	assert.Equal(t, models.CaseStatusStopped, stopped.State.Status)
}

func TestForCaseNonResumableNeverOffersResume(t *testing.T) {
	svc, _, _, _ := newTestStatus(t)

	status := svc.ForCase(context.Background(), models.CaseReportOnly)
	assert.False(t, status.IsRunning)
	assert.False(t, status.CanResume)
	assert.Nil(t, status.State)
}
