package performance

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luckeyseven/dashload/internal/logger"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// VUScheduler manages the lifecycle of Virtual Users for one pattern.
//
// It provides:
//   - VU spawning with a shared, pooled HTTP client
//   - the per-user loop: task, think time, task, ...
//   - graceful shutdown coordination
//
// Executors use the scheduler to control how many users run and for how long.
type VUScheduler struct {
	pattern *DashboardLoadPattern
	metrics *metrics.Engine
	log     *logger.Logger

	httpClientConfig HTTPClientConfig
	sharedClient     *http.Client

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID   atomic.Int32
	iterations atomic.Int64

	// Seed for per-VU random sources; each VU gets seed+id
	seed int64

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host (0 = unlimited)
	MaxConnsPerHost int

	IdleConnTimeout time.Duration

	DisableKeepAlives  bool
	DisableCompression bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates an HTTP client with the configured settings.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		DisableCompression:  cfg.DisableCompression,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test targets
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// NewVUScheduler creates a new VU scheduler. A zero seed picks one from the clock.
func NewVUScheduler(pattern *DashboardLoadPattern, metricsEngine *metrics.Engine, httpConfig HTTPClientConfig, seed int64) *VUScheduler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &VUScheduler{
		pattern:          pattern,
		metrics:          metricsEngine,
		log:              logger.GetLogger(),
		httpClientConfig: httpConfig,
		sharedClient:     NewHTTPClient(httpConfig),
		vus:              make(map[int]*VirtualUser),
		seed:             seed,
		shutdownCh:       make(chan struct{}),
	}
}

// SetLogger replaces the scheduler's logger.
func (s *VUScheduler) SetLogger(l *logger.Logger) {
	if l != nil {
		s.log = l
	}
}

// Pattern returns the pattern every spawned VU executes.
func (s *VUScheduler) Pattern() *DashboardLoadPattern {
	return s.pattern
}

// SpawnVU creates and registers a new Virtual User. The caller runs it,
// usually through RunVU.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))
	vu := NewVirtualUser(id, s.pattern, s.sharedClient, s.metrics, s.seed+int64(id))

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// GetIterations returns the number of completed task invocations across all VUs.
func (s *VUScheduler) GetIterations() int64 {
	return s.iterations.Load()
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// RunVU runs a VU until ctx is cancelled, the VU is stopped, the scheduler
// shuts down, or maxIterations task invocations have completed
// (maxIterations <= 0 means no limit).
//
// Think time is applied between task invocations only, never after the last.
func (s *VUScheduler) RunVU(ctx context.Context, vu *VirtualUser, maxIterations int64) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer s.updateActiveVUs()
	defer vu.MarkStopped()

	s.updateActiveVUs()

	log := s.log.WithVU(vu.ID)
	for completed := int64(0); maxIterations <= 0 || completed < maxIterations; {
		if s.halted(ctx, vu) {
			return
		}

		before := vu.GetCompleted()
		err := vu.RunTask(ctx)
		if vu.GetCompleted() > before {
			completed++
			s.iterations.Add(1)
			log.Debug("task completed", "iteration", vu.GetIteration(), "requests", vu.GetRequests())
		}
		if err != nil {
			if ctx.Err() == nil && !vu.Stopping() {
				log.Warn("task aborted", "error", err)
			}
			return
		}
		if vu.Stopping() {
			return
		}

		if maxIterations > 0 && completed >= maxIterations {
			return
		}
		if !vu.Think(ctx) {
			return
		}
	}
}

func (s *VUScheduler) halted(ctx context.Context, vu *VirtualUser) bool {
	select {
	case <-ctx.Done():
		return true
	case <-s.shutdownCh:
		return true
	default:
	}
	return vu.Stopping()
}

func (s *VUScheduler) updateActiveVUs() {
	if s.metrics != nil {
		s.metrics.SetActiveVUs(s.GetActiveVUCount())
	}
}

// Shutdown stops all VUs and waits up to timeout for their goroutines to exit.
// It returns false if some VUs were still running when the timeout expired.
func (s *VUScheduler) Shutdown(timeout time.Duration) bool {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	stopped := true
	select {
	case <-done:
	case <-timer.C:
		stopped = false
	}

	s.sharedClient.CloseIdleConnections()
	return stopped
}
