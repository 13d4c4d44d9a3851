package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/engine"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDurationShort(tt.duration); got != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{2000, "2,000"},
		{1234567, "1,234,567"},
		{-4000, "-4,000"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.number); got != tt.expected {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("formatBytes(512) = %q", got)
	}
	if got := formatBytes(2048); got != "2.0 KiB" {
		t.Errorf("formatBytes(2048) = %q", got)
	}
	if got := formatBytes(3 * 1024 * 1024); got != "3.0 MiB" {
		t.Errorf("formatBytes(3MiB) = %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	if got := renderProgressBar(0.5, 10); got != "[█████░░░░░]" {
		t.Errorf("renderProgressBar(0.5) = %q", got)
	}
	if got := renderProgressBar(2, 4); got != "[████]" {
		t.Errorf("renderProgressBar(2) = %q", got)
	}
	if got := renderProgressBar(-1, 4); got != "[░░░░]" {
		t.Errorf("renderProgressBar(-1) = %q", got)
	}
}

func sampleResult() *engine.TestResult {
	snap := &metrics.Snapshot{
		TotalRequests:   2000,
		SuccessRequests: 1990,
		FailedRequests:  10,
		TotalBytes:      4096,
		ErrorRate:       0.005,
		RPS:             400,
		Latency:         metrics.LatencyStats{Min: time.Millisecond, P95: 12 * time.Millisecond, Max: 40 * time.Millisecond},
		StatusCodes:     map[int]int64{200: 1990, 503: 6, 0: 4},
	}
	return &engine.TestResult{
		ID:       "0192-run",
		Name:     "team dashboard",
		Duration: 5 * time.Second,
		Metrics:  snap,
		Scenarios: map[string]*engine.ScenarioResult{
			"dashboard": {Name: "dashboard", TeamID: 1, Path: "/api/team/1/dashboard", Iterations: 1, Metrics: snap},
		},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColor: true})
	c.PrintSummary(sampleResult())

	out := buf.String()
	for _, want := range []string{
		"team dashboard - Completed",
		"Run ID:        0192-run",
		"Total Reqs:    2,000",
		"Success Rate:  99.5%",
		"P95:       12ms",
		"error      4",
		"503        6",
		"dashboard team=1 /api/team/1/dashboard tasks=1 reqs=2,000 failed=10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("summary contains ANSI codes with colors disabled")
	}
}

func TestPrintSummary_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, Quiet: true})
	c.PrintHeader()
	c.PrintNonInteractiveUpdate(&LiveStats{})
	c.PrintSummary(sampleResult())

	got := strings.TrimSpace(buf.String())
	if got != "team dashboard requests=2000 failed=10 duration=5.0s" {
		t.Errorf("quiet output = %q", got)
	}
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{
		TestName:  "team dashboard",
		Scenarios: []ScenarioInfo{{Name: "dashboard", Executor: "constant-vus", URL: "http://localhost/api/team/1/dashboard", VUs: 10}},
		Writer:    &buf,
		NoColor:   true,
	})
	c.PrintHeader()

	if !strings.Contains(buf.String(), "dashboard [constant-vus] 10 VUs -> GET http://localhost/api/team/1/dashboard") {
		t.Errorf("header = %q", buf.String())
	}
}

func TestForceColors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, ForceColors: true})
	c.PrintSummary(sampleResult())
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI codes with ForceColors")
	}
}

func TestUpdate_NonTTYIsSilent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf})
	if c.IsTTY() {
		t.Fatal("buffer reported as TTY")
	}
	c.Update(&LiveStats{TotalRequests: 5})
	if buf.Len() != 0 {
		t.Errorf("Update wrote %q to a non-TTY", buf.String())
	}
}

func TestUpdate_TTYRedraws(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, ForceTTY: true, NoColor: true})
	c.Update(&LiveStats{TotalRequests: 1000, Progress: 0.25})
	c.Update(&LiveStats{TotalRequests: 2000, Progress: 0.5})

	out := buf.String()
	if !strings.Contains(out, "Requests: 2,000") {
		t.Errorf("missing second update: %q", out)
	}
	if !strings.Contains(out, "\033[3A") {
		t.Errorf("second update did not move the cursor up: %q", out)
	}
}

func TestPrintNonInteractiveUpdate(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleOutput(ConsoleOutputConfig{Writer: &buf, NoColor: true})
	c.PrintNonInteractiveUpdate(&LiveStats{
		Elapsed:       2 * time.Second,
		Progress:      0.5,
		ActiveVUs:     3,
		Tasks:         2,
		TotalRequests: 4000,
		CurrentRPS:    2000,
		LatencyP95:    3 * time.Millisecond,
	})

	want := "[2.0s] Progress: 50% | VUs: 3 | Tasks: 2 | Reqs: 4000 | RPS: 2000.0 | Errors: 0 (0.0%) | P95: 3ms\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestStatsFromMetrics(t *testing.T) {
	s := StatsFromMetrics(nil, 0.1, time.Minute, 5)
	if s.TargetVUs != 5 || s.Progress != 0.1 {
		t.Errorf("nil snapshot stats = %+v", s)
	}

	snap := &metrics.Snapshot{Elapsed: 10 * time.Second, TotalRequests: 50, FailedRequests: 5, ErrorRate: 0.1}
	s = StatsFromMetrics(snap, 0.5, 0, 2)
	if s.Remaining != 10*time.Second {
		t.Errorf("Remaining = %v, want 10s", s.Remaining)
	}
	if s.Errors != 5 || s.TotalRequests != 50 {
		t.Errorf("stats = %+v", s)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["id"] != "0192-run" {
		t.Errorf("id = %v", decoded["id"])
	}
}
