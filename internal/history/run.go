// Package history persists run summaries so that results can be compared
// across runs.
package history

import (
	"sort"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/engine"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// Run is the stored summary of one load test.
type Run struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Name       string            `json:"name"`
	DurationMs int64             `json:"duration_ms"`
	Summary    Summary           `json:"summary"`
	Scenarios  []ScenarioSummary `json:"scenarios"`
	Error      string            `json:"error,omitempty"`
}

// Summary holds the aggregate request counts and latencies.
type Summary struct {
	TotalRequests int64   `json:"total_requests"`
	Success       int64   `json:"success"`
	Fail          int64   `json:"fail"`
	ErrorRate     float64 `json:"error_rate"`
	RPS           float64 `json:"rps"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

// ScenarioSummary is the per-scenario part of a Run.
type ScenarioSummary struct {
	Name       string  `json:"name"`
	Executor   string  `json:"executor"`
	TeamID     int     `json:"teamId"`
	Path       string  `json:"path"`
	BatchSize  int     `json:"batchSize"`
	Iterations int64   `json:"iterations"`
	Summary    Summary `json:"summary"`
}

// FromResult summarizes an engine result.
func FromResult(result *engine.TestResult) Run {
	run := Run{
		ID:         result.ID,
		Timestamp:  result.StartTime,
		Name:       result.Name,
		DurationMs: result.Duration.Milliseconds(),
		Summary:    summarize(result.Metrics),
		Error:      result.Error,
	}

	names := make([]string, 0, len(result.Scenarios))
	for name := range result.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := result.Scenarios[name]
		if s == nil {
			continue
		}
		run.Scenarios = append(run.Scenarios, ScenarioSummary{
			Name:       name,
			Executor:   s.Executor,
			TeamID:     s.TeamID,
			Path:       s.Path,
			BatchSize:  s.BatchSize,
			Iterations: s.Iterations,
			Summary:    summarize(s.Metrics),
		})
	}
	return run
}

func summarize(m *metrics.Snapshot) Summary {
	if m == nil {
		return Summary{}
	}
	return Summary{
		TotalRequests: m.TotalRequests,
		Success:       m.SuccessRequests,
		Fail:          m.FailedRequests,
		ErrorRate:     m.ErrorRate,
		RPS:           m.RPS,
		AvgLatencyMs:  millis(m.Latency.Mean),
		P95LatencyMs:  millis(m.Latency.P95),
		P99LatencyMs:  millis(m.Latency.P99),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
