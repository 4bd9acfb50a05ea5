package badger

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(tmpDir).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestRecordResultOverwrites(t *testing.T) {
	db := newTestDB(t)
	storage := NewCheckpointStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := &models.CheckpointRecord{
		RunID:      "run-1",
		ItemPath:   "acme/retail/inv-001.pdf",
		Status:     models.ItemStatusError,
		StatusCode: 502,
		LatencyMs:  1200,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := storage.RecordResult(ctx, first); err != nil {
		t.Fatalf("Failed to record first result: %v", err)
	}

	// Writing a second result for the same (run, item) must leave exactly
	// one record, the latest
	second := &models.CheckpointRecord{
		RunID:      "run-1",
		ItemPath:   "acme/retail/inv-001.pdf",
		Status:     models.ItemStatusDone,
		StatusCode: 200,
		LatencyMs:  300,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := storage.RecordResult(ctx, second); err != nil {
		t.Fatalf("Failed to record second result: %v", err)
	}

	records, err := storage.GetRecordsForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to get records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected exactly 1 record, got %d", len(records))
	}
	if records[0].Status != models.ItemStatusDone {
		t.Errorf("Expected latest status %q, got %q", models.ItemStatusDone, records[0].Status)
	}
	if records[0].StatusCode != 200 {
		t.Errorf("Expected latest status code 200, got %d", records[0].StatusCode)
	}
}

func TestCanResume(t *testing.T) {
	db := newTestDB(t)
	storage := NewCheckpointStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// No records: not resumable
	resumable, err := storage.CanResume(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if resumable {
		t.Error("Run with zero records must not be resumable")
	}

	record := &models.CheckpointRecord{
		RunID:    "run-1",
		ItemPath: "acme/retail/inv-001.pdf",
		Status:   models.ItemStatusDone,
	}
	if err := storage.RecordResult(ctx, record); err != nil {
		t.Fatal(err)
	}

	// Records present and run not completed: resumable
	resumable, err = storage.CanResume(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if !resumable {
		t.Error("Run with records and no completion marker must be resumable")
	}

	// After clean completion the same run is immediately not resumable
	if err := storage.SetLastCompletedRunID(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	resumable, err = storage.CanResume(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if resumable {
		t.Error("Completed run must not be resumable")
	}
}

func TestRunMarkers(t *testing.T) {
	db := newTestDB(t)
	storage := NewCheckpointStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Empty store degrades to empty markers, never errors
	current, err := storage.GetCurrentRunID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if current != "" {
		t.Errorf("Expected empty current marker, got %q", current)
	}

	if err := storage.SetCurrentRunID(ctx, "run-7"); err != nil {
		t.Fatal(err)
	}
	if err := storage.SetLastCompletedRunID(ctx, "run-6"); err != nil {
		t.Fatal(err)
	}

	current, _ = storage.GetCurrentRunID(ctx)
	if current != "run-7" {
		t.Errorf("Expected current marker run-7, got %q", current)
	}
	last, _ := storage.GetLastCompletedRunID(ctx)
	if last != "run-6" {
		t.Errorf("Expected last-completed marker run-6, got %q", last)
	}
}

func TestGetRecordsForRunScopedByRun(t *testing.T) {
	db := newTestDB(t)
	storage := NewCheckpointStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, runID := range []string{"run-a", "run-b"} {
		record := &models.CheckpointRecord{
			RunID:    runID,
			ItemPath: "acme/retail/inv-001.pdf",
			Status:   models.ItemStatusDone,
		}
		if err := storage.RecordResult(ctx, record); err != nil {
			t.Fatal(err)
		}
	}

	records, err := storage.GetRecordsForRun(ctx, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record for run-a, got %d", len(records))
	}
	if records[0].RunID != "run-a" {
		t.Errorf("Expected run-a record, got %s", records[0].RunID)
	}
}
