package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

func doneRecord(path string, latencyMs int64, start time.Time) models.CheckpointRecord {
	return models.CheckpointRecord{
		RunID:      "run-1",
		ItemPath:   path,
		Status:     models.ItemStatusDone,
		LatencyMs:  latencyMs,
		StartedAt:  start,
		FinishedAt: start.Add(time.Duration(latencyMs) * time.Millisecond),
	}
}

func errorRecord(path string, statusCode int, start time.Time) models.CheckpointRecord {
	return models.CheckpointRecord{
		RunID:      "run-1",
		ItemPath:   path,
		Status:     models.ItemStatusError,
		StatusCode: statusCode,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

func TestComputeZeroRecords(t *testing.T) {
	report := Compute("run-empty", nil)

	assert.Equal(t, 0, report.TotalItems)
	assert.Equal(t, float64(0), report.ErrorRate)
	assert.Equal(t, float64(0), report.LatencyAvgMs)
	assert.Equal(t, float64(0), report.ItemsPerSecond)
	assert.Empty(t, report.SlowestItems)
	assert.Empty(t, report.Anomalies)
}

func TestComputeCountsAndPercentiles(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 8 done (seven at 100ms, one at 900ms) plus 2 errors
	var records []models.CheckpointRecord
	for i := 0; i < 7; i++ {
		records = append(records, doneRecord("acme/north/file"+string(rune('a'+i)), 100, start))
	}
	records = append(records, doneRecord("acme/north/big.pdf", 900, start))
	records = append(records, errorRecord("acme/south/bad1.pdf", 503, start))
	records = append(records, errorRecord("globo/east/bad2.pdf", 0, start))

	report := Compute("run-1", records)

	assert.Equal(t, 10, report.TotalItems)
	assert.Equal(t, 8, report.DoneCount)
	assert.Equal(t, 2, report.ErrorCount)
	assert.InDelta(t, 0.2, report.ErrorRate, 1e-9)
	assert.InDelta(t, 200, report.LatencyAvgMs, 1e-9)
	assert.Equal(t, float64(100), report.LatencyP50Ms)
	assert.Equal(t, float64(900), report.LatencyP95Ms)
	assert.Equal(t, float64(900), report.LatencyP99Ms)
}

func TestFailureBreakdownClassification(t *testing.T) {
	start := time.Now()
	records := []models.CheckpointRecord{
		errorRecord("acme/a.pdf", 0, start),
		errorRecord("acme/b.pdf", 500, start),
		errorRecord("acme/c.pdf", 503, start),
		errorRecord("acme/d.pdf", 404, start),
		errorRecord("acme/e.pdf", 302, start),
	}

	report := Compute("run-1", records)

	assert.Equal(t, 1, report.FailureBreakdown[FailureUploadRead])
	assert.Equal(t, 2, report.FailureBreakdown[FailureService])
	assert.Equal(t, 1, report.FailureBreakdown[FailureClient])
	assert.Equal(t, 1, report.FailureBreakdown[FailureOther])
}

func TestRepeatedFailuresGroupedByBrand(t *testing.T) {
	start := time.Now()
	records := []models.CheckpointRecord{
		errorRecord("acme/north/a.pdf", 500, start),
		errorRecord("acme/south/b.pdf", 500, start),
		errorRecord("/acme/north/c.pdf", 404, start),
		errorRecord("globo/east/d.pdf", 0, start),
	}

	report := Compute("run-1", records)

	assert.Equal(t, 3, report.RepeatedFailures["acme"])
	assert.Equal(t, 1, report.RepeatedFailures["globo"])
}

func TestThroughputAndDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.CheckpointRecord{
		doneRecord("acme/a.pdf", 100, start),
		{
			RunID: "run-1", ItemPath: "acme/b.pdf", Status: models.ItemStatusDone,
			LatencyMs: 100, StartedAt: start.Add(9 * time.Second), FinishedAt: start.Add(10 * time.Second),
		},
	}

	report := Compute("run-1", records)

	assert.InDelta(t, 10.0, report.DurationSeconds, 1e-9)
	assert.InDelta(t, 0.2, report.ItemsPerSecond, 1e-9)
	assert.InDelta(t, 12.0, report.ItemsPerMinute, 1e-9)
}

func TestSlowestItemsCapped(t *testing.T) {
	start := time.Now()
	var records []models.CheckpointRecord
	for i := 0; i < 15; i++ {
		records = append(records, doneRecord("acme/file", int64(100+i), start))
	}

	report := Compute("run-1", records)

	require.Len(t, report.SlowestItems, slowestItemCount)
	assert.Equal(t, int64(114), report.SlowestItems[0].LatencyMs)
	assert.Equal(t, int64(105), report.SlowestItems[len(report.SlowestItems)-1].LatencyMs)
}

func TestAnomaliesExceedTwiceP95(t *testing.T) {
	start := time.Now()
	var records []models.CheckpointRecord
	// 99 items at 100ms pin p95 at 100, one at 900ms is well past 2x
	for i := 0; i < 99; i++ {
		records = append(records, doneRecord("acme/fast.pdf", 100, start))
	}
	records = append(records, doneRecord("acme/slow.pdf", 900, start))

	report := Compute("run-1", records)

	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "acme/slow.pdf", report.Anomalies[0].ItemPath)
	assert.Equal(t, float64(200), report.Anomalies[0].Threshold)
}

func TestSkippedItemsExcludedFromLatency(t *testing.T) {
	start := time.Now()
	records := []models.CheckpointRecord{
		doneRecord("acme/a.pdf", 100, start),
		{RunID: "run-1", ItemPath: "acme/b.pdf", Status: models.ItemStatusSkipped},
	}

	report := Compute("run-1", records)

	assert.Equal(t, 1, report.SkippedCount)
	assert.Equal(t, 1, report.DoneCount)
	assert.Equal(t, float64(100), report.LatencyAvgMs)
	assert.Equal(t, float64(0), report.ErrorRate)
}
