// -----------------------------------------------------------------------
// Metrics engine - per-run statistics and anomaly detection over the ledger
// -----------------------------------------------------------------------

package metrics

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// FailureClass buckets an error record by its status code
type FailureClass string

const (
	FailureUploadRead FailureClass = "upload_read" // code 0: never reached the extraction API
	FailureService    FailureClass = "service"     // 5xx
	FailureClient     FailureClass = "client"      // 4xx
	FailureOther      FailureClass = "other"       // timeouts and everything else
)

// SlowItem is one entry in the slowest-items list
type SlowItem struct {
	ItemPath  string `json:"item_path"`
	LatencyMs int64  `json:"latency_ms"`
}

// Anomaly flags an item whose latency exceeded twice the run's p95
type Anomaly struct {
	ItemPath  string  `json:"item_path"`
	LatencyMs int64   `json:"latency_ms"`
	Threshold float64 `json:"threshold_ms"`
}

// Report is the full metrics output for one run
type Report struct {
	RunID        string `json:"run_id"`
	TotalItems   int    `json:"total_items"`
	DoneCount    int    `json:"done_count"`
	ErrorCount   int    `json:"error_count"`
	SkippedCount int    `json:"skipped_count"`

	DurationSeconds float64 `json:"duration_seconds"`

	LatencyAvgMs float64 `json:"latency_avg_ms"`
	LatencyP50Ms float64 `json:"latency_p50_ms"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
	LatencyP99Ms float64 `json:"latency_p99_ms"`

	ItemsPerSecond float64 `json:"items_per_second"`
	ItemsPerMinute float64 `json:"items_per_minute"`
	ErrorRate      float64 `json:"error_rate"`

	FailureBreakdown map[FailureClass]int `json:"failure_breakdown"`
	SlowestItems     []SlowItem           `json:"slowest_items"`
	RepeatedFailures map[string]int       `json:"repeated_failures"` // brand → error count
	Anomalies        []Anomaly            `json:"anomalies"`
}

// slowestItemCount caps the slowest-items list in a report
const slowestItemCount = 10

// Engine computes run reports from checkpoint ledger records
type Engine struct {
	checkpoints interfaces.CheckpointStorage
	logger      arbor.ILogger
}

// NewEngine creates the metrics engine
func NewEngine(checkpoints interfaces.CheckpointStorage, logger arbor.ILogger) *Engine {
	return &Engine{checkpoints: checkpoints, logger: logger}
}

// ReportForRun loads a run's ledger records and computes its report
func (e *Engine) ReportForRun(ctx context.Context, runID string) (*Report, error) {
	records, err := e.checkpoints.GetRecordsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	report := Compute(runID, records)
	return report, nil
}

// ReportForCurrentRun computes the report for the run currently writing the
// ledger, falling back to the last completed run when none is in flight.
func (e *Engine) ReportForCurrentRun(ctx context.Context) (*Report, error) {
	runID, err := e.checkpoints.GetCurrentRunID(ctx)
	if err != nil || runID == "" {
		runID, err = e.checkpoints.GetLastCompletedRunID(ctx)
		if err != nil {
			return nil, err
		}
	}
	return e.ReportForRun(ctx, runID)
}

// Compute derives the full report from one run's records. Zero records yield
// an all-zero report, never NaN or Inf.
func Compute(runID string, records []models.CheckpointRecord) *Report {
	report := &Report{
		RunID:            runID,
		TotalItems:       len(records),
		FailureBreakdown: make(map[FailureClass]int),
		RepeatedFailures: make(map[string]int),
	}
	if len(records) == 0 {
		return report
	}

	var latencies []int64
	var latencySum int64
	var earliestStart, latestFinish int64

	for i := range records {
		record := &records[i]
		switch record.Status {
		case models.ItemStatusDone:
			report.DoneCount++
			latencies = append(latencies, record.LatencyMs)
			latencySum += record.LatencyMs
		case models.ItemStatusError:
			report.ErrorCount++
			report.FailureBreakdown[classify(record.StatusCode)]++
			report.RepeatedFailures[brandOf(record.ItemPath)]++
		case models.ItemStatusSkipped:
			report.SkippedCount++
		}

		if started := record.StartedAt.UnixMilli(); !record.StartedAt.IsZero() {
			if earliestStart == 0 || started < earliestStart {
				earliestStart = started
			}
		}
		if finished := record.FinishedAt.UnixMilli(); !record.FinishedAt.IsZero() {
			if finished > latestFinish {
				latestFinish = finished
			}
		}
	}

	if latestFinish > earliestStart && earliestStart > 0 {
		report.DurationSeconds = float64(latestFinish-earliestStart) / 1000.0
	}

	processed := report.DoneCount + report.ErrorCount
	if processed > 0 {
		report.ErrorRate = float64(report.ErrorCount) / float64(processed)
	}
	if report.DurationSeconds > 0 {
		report.ItemsPerSecond = float64(processed) / report.DurationSeconds
		report.ItemsPerMinute = report.ItemsPerSecond * 60.0
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		report.LatencyAvgMs = float64(latencySum) / float64(len(latencies))
		report.LatencyP50Ms = quantile(latencies, 0.50)
		report.LatencyP95Ms = quantile(latencies, 0.95)
		report.LatencyP99Ms = quantile(latencies, 0.99)
	}

	report.SlowestItems = slowest(records, slowestItemCount)
	report.Anomalies = anomalies(records, report.LatencyP95Ms)

	return report
}

// classify buckets an error status code. Zero means the item never reached
// the extraction API (upload or local read failure); HTTP classes map
// directly; anything else is a timeout or transport error.
func classify(statusCode int) FailureClass {
	switch {
	case statusCode == 0:
		return FailureUploadRead
	case statusCode >= 500:
		return FailureService
	case statusCode >= 400:
		return FailureClient
	default:
		return FailureOther
	}
}

// brandOf extracts the brand from an item path: its first segment
func brandOf(itemPath string) string {
	trimmed := strings.TrimLeft(itemPath, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// quantile reads the q-th quantile from an ascending-sorted latency slice
// using the nearest-rank method
func quantile(sorted []int64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx])
}

// slowest returns the n highest-latency completed items
func slowest(records []models.CheckpointRecord, n int) []SlowItem {
	var done []SlowItem
	for i := range records {
		if records[i].Status == models.ItemStatusDone {
			done = append(done, SlowItem{ItemPath: records[i].ItemPath, LatencyMs: records[i].LatencyMs})
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].LatencyMs > done[j].LatencyMs })
	if len(done) > n {
		done = done[:n]
	}
	return done
}

// anomalies flags completed items whose latency exceeded twice the run p95
func anomalies(records []models.CheckpointRecord, p95 float64) []Anomaly {
	if p95 <= 0 {
		return nil
	}
	threshold := 2 * p95

	var out []Anomaly
	for i := range records {
		record := &records[i]
		if record.Status == models.ItemStatusDone && float64(record.LatencyMs) > threshold {
			out = append(out, Anomaly{
				ItemPath:  record.ItemPath,
				LatencyMs: record.LatencyMs,
				Threshold: threshold,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LatencyMs > out[j].LatencyMs })
	return out
}
