package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/luckeyseven/dashload/internal/performance"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// PerVUIterations runs a fixed number of task invocations on each VU.
//
// With vus=1 and iterations=1 this is exactly one user executing one task:
// batchSize requests and no think time. MaxDuration, when set, ends the run
// early.
type PerVUIterations struct {
	config *Config
	pool   vuPool
}

// NewPerVUIterations creates a new per-VU iterations executor.
func NewPerVUIterations() *PerVUIterations {
	return &PerVUIterations{}
}

// Type returns the executor type.
func (e *PerVUIterations) Type() Type {
	return TypePerVUIterations
}

// Init initializes the executor with configuration.
func (e *PerVUIterations) Init(ctx context.Context, config *Config) error {
	if config.Type != TypePerVUIterations {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypePerVUIterations, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until every VU has finished its
// iterations or MaxDuration expires.
func (e *PerVUIterations) Run(ctx context.Context, scheduler *performance.VUScheduler, _ *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	e.pool.run(ctx, scheduler, e.config.VUs, e.config.MaxDuration, e.config.gracefulStop(), e.config.Iterations)
	return nil
}

func (e *PerVUIterations) totalIterations() int64 {
	if e.config == nil {
		return 0
	}
	return int64(e.config.VUs) * e.config.Iterations
}

// GetProgress returns the completed share of all planned iterations.
func (e *PerVUIterations) GetProgress() float64 {
	if e.pool.finished.Load() {
		return 1.0
	}
	total := e.totalIterations()
	if total == 0 {
		return 0.0
	}
	return min(float64(e.pool.iterations())/float64(total), 1.0)
}

// GetActiveVUs returns current active VU count.
func (e *PerVUIterations) GetActiveVUs() int {
	return int(e.pool.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *PerVUIterations) GetStats() *Stats {
	start := e.pool.started()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	stats := &Stats{
		StartTime:       start,
		CurrentTime:     time.Now(),
		Elapsed:         elapsed,
		ActiveVUs:       e.GetActiveVUs(),
		Iterations:      e.pool.iterations(),
		TotalIterations: e.totalIterations(),
	}
	if e.config != nil {
		stats.TotalDuration = e.config.MaxDuration
		stats.TargetVUs = e.config.VUs
	}
	return stats
}

// Stop gracefully stops the executor.
func (e *PerVUIterations) Stop(ctx context.Context) error {
	graceful := DefaultGracefulStop
	if e.config != nil {
		graceful = e.config.gracefulStop()
	}
	return e.pool.stop(ctx, graceful)
}
