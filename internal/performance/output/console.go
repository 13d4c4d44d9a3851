// Package output renders load test progress and results to the console.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/engine"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	boxHorizontal = "━"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64 // 0.0 to 1.0
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	// Tasks is the number of completed task invocations.
	Tasks int64

	CurrentRPS    float64
	TotalRequests int64
	Errors        int64
	ErrorRate     float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration
}

// ScenarioInfo describes one scenario in the header.
type ScenarioInfo struct {
	Name     string
	Executor string
	URL      string
	VUs      int
}

// ConsoleOutput manages console output during test execution.
type ConsoleOutput struct {
	testName  string
	scenarios []ScenarioInfo
	writer    io.Writer
	colors    *ColorScheme
	isTTY     bool
	quiet     bool

	mu          sync.Mutex
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName    string
	Scenarios   []ScenarioInfo
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(config ConsoleOutputConfig) *ConsoleOutput {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || IsTerminal(config.Writer)

	var colors *ColorScheme
	switch {
	case config.NoColor || os.Getenv("NO_COLOR") != "":
		colors = NoColorScheme()
	case config.ForceColors:
		colors = ForcedColorScheme()
	case isTTY:
		colors = DefaultColorScheme()
	default:
		colors = NoColorScheme()
	}

	return &ConsoleOutput{
		testName:  config.TestName,
		scenarios: config.Scenarios,
		writer:    config.Writer,
		colors:    colors,
		isTTY:     isTTY,
		quiet:     config.Quiet,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the test name and one line per scenario.
func (c *ConsoleOutput) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, 56))
	c.writeln(line)
	c.writeln(c.colors.Title.Sprintf("%s - Running", c.testName))
	c.writeln(line)
	for _, s := range c.scenarios {
		c.writeln(fmt.Sprintf("  %s [%s] %d VUs -> GET %s",
			c.colors.Highlight.Sprint(s.Name), s.Executor, s.VUs, c.colors.Value.Sprint(s.URL)))
	}
	c.writeln("")
}

// Update redraws the live display in place. It does nothing when the output
// is not a terminal; use PrintNonInteractiveUpdate there.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()
	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	rate := c.colors.rate(stats.ErrorRate)

	return []string{
		fmt.Sprintf("Progress: %s %s | %s",
			c.colors.Success.Sprint(renderProgressBar(stats.Progress, 40)),
			c.colors.Title.Sprintf("%.0f%%", stats.Progress*100),
			c.colors.Dim.Sprint(timeInfo)),
		fmt.Sprintf("VUs: %s/%d  Tasks: %s  Requests: %s  RPS: %s",
			c.colors.Value.Sprint(stats.ActiveVUs), stats.TargetVUs,
			c.colors.Value.Sprint(formatNumber(stats.Tasks)),
			c.colors.Value.Sprint(formatNumber(stats.TotalRequests)),
			c.colors.Success.Sprintf("%.1f", stats.CurrentRPS)),
		fmt.Sprintf("Errors: %s (%s)  P95: %s  Avg: %s",
			rate.Sprint(stats.Errors), rate.Sprintf("%.1f%%", stats.ErrorRate*100),
			c.colors.Latency.Sprint(formatDurationShort(stats.LatencyP95)),
			c.colors.Latency.Sprint(formatDurationShort(stats.LatencyAvg))),
	}
}

// PrintNonInteractiveUpdate prints a one-line status update. Used when
// output is not a TTY (e.g., piped to a file or CI).
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | VUs: %d | Tasks: %d | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveVUs,
		stats.Tasks,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		formatDurationShort(stats.LatencyP95)))
}

// PrintSummary prints the final test summary.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		var total, failed int64
		if result.Metrics != nil {
			total, failed = result.Metrics.TotalRequests, result.Metrics.FailedRequests
		}
		c.writeln(fmt.Sprintf("%s requests=%d failed=%d duration=%s",
			result.Name, total, failed, formatDuration(result.Duration)))
		return
	}

	if c.isTTY {
		c.clearLive()
	}

	status := c.colors.Success.Sprint("Completed ✓")
	if result.Error != "" {
		status = c.colors.Error.Sprint("Interrupted ✗")
	}

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, 56))
	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(line)
	c.writeln("")

	c.writeln(fmt.Sprintf("Run ID:        %s", c.colors.Dim.Sprint(result.ID)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))
	if result.Error != "" {
		c.writeln(fmt.Sprintf("Error:         %s", c.colors.Error.Sprint(result.Error)))
	}

	if m := result.Metrics; m != nil {
		c.printTotals(m)
		c.printLatency("Latency Distribution:", m.Latency)
		c.printStatusCodes(m.StatusCodes)
	}

	names := make([]string, 0, len(result.Scenarios))
	for name := range result.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		c.writeln(c.colors.Label.Sprint("Scenarios:"))
	}
	for _, name := range names {
		s := result.Scenarios[name]
		if s == nil {
			continue
		}
		var reqs, failed int64
		if s.Metrics != nil {
			reqs, failed = s.Metrics.TotalRequests, s.Metrics.FailedRequests
		}
		c.writeln(fmt.Sprintf("  %s team=%d %s tasks=%d reqs=%s failed=%s",
			c.colors.Highlight.Sprint(name), s.TeamID, s.Path, s.Iterations,
			formatNumber(reqs), c.colors.rate(ratio(failed, reqs)).Sprint(formatNumber(failed))))
	}
	c.writeln("")
}

func (c *ConsoleOutput) printTotals(m *metrics.Snapshot) {
	successRate := 1.0 - m.ErrorRate
	c.writeln(fmt.Sprintf("Total Reqs:    %s", c.colors.Value.Sprint(formatNumber(m.TotalRequests))))
	c.writeln(fmt.Sprintf("Success Rate:  %s", c.colors.rate(m.ErrorRate).Sprintf("%.1f%%", successRate*100)))
	c.writeln(fmt.Sprintf("Throughput:    %s", c.colors.Value.Sprintf("%.1f req/s", m.RPS)))
	c.writeln(fmt.Sprintf("Received:      %s", c.colors.Value.Sprint(formatBytes(m.TotalBytes))))
	c.writeln("")
}

func (c *ConsoleOutput) printLatency(title string, l metrics.LatencyStats) {
	c.writeln(c.colors.Label.Sprint(title))
	rows := []struct {
		name string
		v    time.Duration
	}{
		{"Min", l.Min}, {"Avg", l.Mean}, {"P50", l.P50}, {"P90", l.P90},
		{"P95", l.P95}, {"P99", l.P99}, {"Max", l.Max},
	}
	for _, r := range rows {
		c.writeln(fmt.Sprintf("  %-4s       %s", r.name+":", c.colors.Latency.Sprint(formatDurationShort(r.v))))
	}
	c.writeln("")
}

func (c *ConsoleOutput) printStatusCodes(codes map[int]int64) {
	if len(codes) == 0 {
		return
	}
	keys := make([]int, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	c.writeln(c.colors.Label.Sprint("Status Codes:"))
	for _, k := range keys {
		label := fmt.Sprintf("%d", k)
		if k == 0 {
			label = "error"
		}
		c.writeln(fmt.Sprintf("  %-6s     %s", label, c.colors.status(k).Sprint(formatNumber(codes[k]))))
	}
	c.writeln("")
}

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromMetrics creates LiveStats from a metrics snapshot.
func StatsFromMetrics(snapshot *metrics.Snapshot, progress float64, totalDuration time.Duration, targetVUs int) *LiveStats {
	if snapshot == nil {
		return &LiveStats{Progress: progress, TargetVUs: targetVUs}
	}

	elapsed := snapshot.Elapsed
	remaining := time.Duration(0)
	if progress > 0 && progress < 1 {
		remaining = time.Duration(float64(elapsed) * (1 - progress) / progress)
	} else if totalDuration > 0 {
		remaining = max(totalDuration-elapsed, 0)
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		CurrentRPS:    snapshot.RPS,
		TotalRequests: snapshot.TotalRequests,
		Errors:        snapshot.FailedRequests,
		ErrorRate:     snapshot.ErrorRate,
		LatencyP95:    snapshot.Latency.P95,
		LatencyAvg:    snapshot.Latency.Mean,
	}
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatDurationShort formats a latency value.
func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var b strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		b.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(str[i : i+3])
	}
	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
