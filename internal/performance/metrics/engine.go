// Package metrics aggregates request outcomes reported by virtual users.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates request metrics using HDR histograms.
//
// Engine is safe for concurrent use. Counters are atomic; histograms and
// the status-code table are guarded by mutexes because hdrhistogram is not
// goroutine safe.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures by default
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.RWMutex

	statusCodes   map[int]int64
	statusCodesMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64

	activeVUs atomic.Int32

	startTime time.Time

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int

	// Observer, when set, is called synchronously with every recorded result.
	// It runs on the virtual user's goroutine and must be safe for concurrent use.
	Observer func(RequestResult)
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
// Zero histogram bounds fall back to the defaults.
func NewEngineWithConfig(config EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if config.HistogramMin <= 0 {
		config.HistogramMin = def.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = def.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = def.HistogramSigFigs
	}

	return &Engine{
		latencyHist:  hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists: make(map[string]*hdrhistogram.Histogram),
		statusCodes:  make(map[int]int64),
		startTime:    time.Now(),
		config:       config,
	}
}

// Record adds one request outcome to the aggregate.
func (e *Engine) Record(r RequestResult) {
	latencyMicros := e.clamp(r.Duration.Microseconds())

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if r.Name != "" {
		e.recordRequestHistogram(r.Name, latencyMicros)
	}

	code := r.StatusCode
	if r.Error != nil {
		code = 0
	}
	e.statusCodesMu.Lock()
	e.statusCodes[code]++
	e.statusCodesMu.Unlock()

	e.totalRequests.Add(1)
	e.totalBytes.Add(r.BytesReceived)
	if r.Success() {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	if e.config.Observer != nil {
		e.config.Observer(r)
	}
}

func (e *Engine) clamp(v int64) int64 {
	if v < e.config.HistogramMin {
		return e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		return e.config.HistogramMax
	}
	return v
}

// recordRequestHistogram records a latency in a per-request histogram.
func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}
	_ = hist.RecordValue(latencyMicros)
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetTotalRequests returns the number of recorded requests.
func (e *Engine) GetTotalRequests() int64 {
	return e.totalRequests.Load()
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := latencyStats(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(totalReqs) / elapsed.Seconds()
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		RPS:             rps,
		ErrorRate:       errorRate,
		ActiveVUs:       e.GetActiveVUs(),
		StatusCodes:     e.GetStatusCodes(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetStatusCodes returns a copy of the per-status response counts.
func (e *Engine) GetStatusCodes() map[int]int64 {
	e.statusCodesMu.Lock()
	defer e.statusCodesMu.Unlock()

	result := make(map[int]int64, len(e.statusCodes))
	for code, n := range e.statusCodes {
		result[code] = n
	}
	return result
}

// GetRequestStats returns per-request statistics.
func (e *Engine) GetRequestStats() map[string]LatencyStats {
	e.requestHistsMu.RLock()
	defer e.requestHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = latencyStats(hist)
	}
	return result
}

// Merge folds the recorded state of other into e. The active VU count is
// summed; start time keeps the earlier of the two.
func (e *Engine) Merge(other *Engine) {
	if other == nil || other == e {
		return
	}

	other.latencyHistMu.Lock()
	e.latencyHistMu.Lock()
	e.latencyHist.Merge(other.latencyHist)
	e.latencyHistMu.Unlock()
	other.latencyHistMu.Unlock()

	other.requestHistsMu.RLock()
	e.requestHistsMu.Lock()
	for name, hist := range other.requestHists {
		dst, ok := e.requestHists[name]
		if !ok {
			dst = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
			e.requestHists[name] = dst
		}
		dst.Merge(hist)
	}
	e.requestHistsMu.Unlock()
	other.requestHistsMu.RUnlock()

	for code, n := range other.GetStatusCodes() {
		e.statusCodesMu.Lock()
		e.statusCodes[code] += n
		e.statusCodesMu.Unlock()
	}

	e.totalRequests.Add(other.totalRequests.Load())
	e.successRequests.Add(other.successRequests.Load())
	e.failedRequests.Add(other.failedRequests.Load())
	e.totalBytes.Add(other.totalBytes.Load())
	e.activeVUs.Add(other.activeVUs.Load())

	if other.startTime.Before(e.startTime) {
		e.startTime = other.startTime
	}
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.requestHistsMu.Lock()
	e.requestHists = make(map[string]*hdrhistogram.Histogram)
	e.requestHistsMu.Unlock()

	e.statusCodesMu.Lock()
	e.statusCodes = make(map[int]int64)
	e.statusCodesMu.Unlock()

	e.totalRequests.Store(0)
	e.successRequests.Store(0)
	e.failedRequests.Store(0)
	e.totalBytes.Store(0)
	e.activeVUs.Store(0)
	e.startTime = time.Now()
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}
