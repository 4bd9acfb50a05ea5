package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

var testTimezones = []string{"UTC", "Australia/Sydney"}

func TestScheduleCRUD(t *testing.T) {
	db := newTestDB(t)
	storage := NewScheduleStorage(db, arbor.NewLogger())
	ctx := context.Background()

	schedule := &models.Schedule{
		ID:        "sched-1",
		Name:      "nightly full pipeline",
		CaseID:    models.CaseFullPipeline,
		Brands:    []string{"acme"},
		Cron:      "0 9 * * *",
		Timezone:  "UTC",
		Enabled:   true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := storage.SaveSchedule(ctx, schedule); err != nil {
		t.Fatalf("Failed to save schedule: %v", err)
	}

	loaded, err := storage.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("Failed to get schedule: %v", err)
	}
	if loaded.Name != schedule.Name {
		t.Errorf("Expected name %q, got %q", schedule.Name, loaded.Name)
	}

	schedules, err := storage.ListSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 {
		t.Fatalf("Expected 1 schedule, got %d", len(schedules))
	}

	if err := storage.DeleteSchedule(ctx, "sched-1"); err != nil {
		t.Fatalf("Failed to delete schedule: %v", err)
	}
	if _, err := storage.GetSchedule(ctx, "sched-1"); err == nil {
		t.Error("Expected error getting deleted schedule")
	}

	// Deleting again is a no-op
	if err := storage.DeleteSchedule(ctx, "sched-1"); err != nil {
		t.Errorf("Delete of missing schedule should be nil, got %v", err)
	}
}

func TestLoadSchedulesFromFiles(t *testing.T) {
	db := newTestDB(t)
	storage := NewScheduleStorage(db, arbor.NewLogger())
	ctx := context.Background()
	logger := arbor.NewLogger()

	dir := t.TempDir()

	valid := `
id = "sched-nightly"
name = "nightly extraction"
case_id = "full-pipeline"
brands = ["acme"]
cron = "0 2 * * *"
timezone = "UTC"
enabled = true
`
	if err := os.WriteFile(filepath.Join(dir, "nightly.toml"), []byte(valid), 0644); err != nil {
		t.Fatal(err)
	}

	// Bad timezone: must be skipped, not fatal
	invalid := `
id = "sched-bad"
name = "bad tz"
brands = ["acme"]
cron = "0 3 * * *"
timezone = "Mars/Olympus"
enabled = true
`
	if err := os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(invalid), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadSchedulesFromFiles(ctx, storage, dir, testTimezones, logger); err != nil {
		t.Fatalf("LoadSchedulesFromFiles failed: %v", err)
	}

	schedules, err := storage.ListSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 {
		t.Fatalf("Expected 1 loaded schedule, got %d", len(schedules))
	}
	if schedules[0].ID != "sched-nightly" {
		t.Errorf("Expected sched-nightly, got %s", schedules[0].ID)
	}

	// Loading again must be idempotent
	if err := LoadSchedulesFromFiles(ctx, storage, dir, testTimezones, logger); err != nil {
		t.Fatal(err)
	}
	schedules, _ = storage.ListSchedules(ctx)
	if len(schedules) != 1 {
		t.Fatalf("Expected 1 schedule after re-load, got %d", len(schedules))
	}
}

func TestAuditAppendOnly(t *testing.T) {
	db := newTestDB(t)
	storage := NewAuditStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &models.AuditEntry{
			ScheduleID: "sched-1",
			CaseID:     models.CaseFullPipeline,
			Outcome:    models.TriggerSkipped,
			Detail:     "another run is active",
		}
		if err := storage.AppendEntry(ctx, entry); err != nil {
			t.Fatalf("Failed to append audit entry: %v", err)
		}
	}

	entries, err := storage.ListEntries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 audit entries, got %d", len(entries))
	}

	entries, err = storage.ListEntries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected limit of 2 entries, got %d", len(entries))
	}
}

func TestManifestUpsert(t *testing.T) {
	db := newTestDB(t)
	storage := NewManifestStorage(db, arbor.NewLogger())
	ctx := context.Background()

	entry := &models.ManifestEntry{Key: "acme/retail/inv-001.pdf", ContentHash: "sha256:aaa"}
	if err := storage.UpsertEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}

	other := &models.ManifestEntry{Key: "acme/retail/inv-002.pdf", ContentHash: "sha256:bbb"}
	if err := storage.UpsertEntry(ctx, other); err != nil {
		t.Fatal(err)
	}

	// Re-fetch with a new hash overwrites, preserving unrelated keys
	entry.ContentHash = "sha256:ccc"
	if err := storage.UpsertEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}

	loaded, err := storage.GetEntry(ctx, "acme/retail/inv-001.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.ContentHash != "sha256:ccc" {
		t.Errorf("Expected updated hash sha256:ccc, got %+v", loaded)
	}

	count, err := storage.CountEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 manifest entries, got %d", count)
	}

	missing, err := storage.GetEntry(ctx, "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown manifest key")
	}
}
