package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/luckeyseven/dashload/internal/performance"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// ConstantVUs runs a fixed number of VUs for a specified duration.
//
// Every VU loops task, think time, task, ... until the duration expires.
// When the duration expires every VU finishes its in-flight request and
// exits; requests still running after GracefulStop are cancelled.
type ConstantVUs struct {
	config *Config
	pool   vuPool
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until completion.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, _ *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	e.pool.run(ctx, scheduler, e.config.VUs, e.config.Duration, e.config.gracefulStop(), 0)
	return nil
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	if !e.pool.running.Load() {
		if e.pool.finished.Load() {
			return 1.0
		}
		return 0.0
	}

	progress := float64(time.Since(e.pool.started())) / float64(e.config.Duration)
	return min(progress, 1.0)
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	return int(e.pool.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	start := e.pool.started()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	stats := &Stats{
		StartTime:   start,
		CurrentTime: time.Now(),
		Elapsed:     elapsed,
		ActiveVUs:   e.GetActiveVUs(),
		Iterations:  e.pool.iterations(),
	}
	if e.config != nil {
		stats.TotalDuration = e.config.Duration
		stats.TargetVUs = e.config.VUs
	}
	return stats
}

// Stop gracefully stops the executor.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	graceful := DefaultGracefulStop
	if e.config != nil {
		graceful = e.config.gracefulStop()
	}
	return e.pool.stop(ctx, graceful)
}
