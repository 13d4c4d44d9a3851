package performance

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running a task.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is executing a task.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one simulated user bound to a DashboardLoadPattern.
//
// Its pattern, and therefore its team ID, is fixed for its whole lifetime.
// The random source used for think time belongs to the VU alone.
type VirtualUser struct {
	ID int

	Pattern *DashboardLoadPattern

	HTTPClient *http.Client

	Metrics *metrics.Engine

	state     atomic.Int32
	stopCh    chan struct{}
	doneCh    chan struct{}
	iteration atomic.Int64
	completed atomic.Int64
	requests  atomic.Int64

	rng *rand.Rand
}

// NewVirtualUser creates a new Virtual User. seed initialises its think
// time source.
func NewVirtualUser(id int, pattern *DashboardLoadPattern, httpClient *http.Client, metricsEngine *metrics.Engine, seed int64) *VirtualUser {
	return &VirtualUser{
		ID:         id,
		Pattern:    pattern,
		HTTPClient: httpClient,
		Metrics:    metricsEngine,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of task invocations started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// GetCompleted returns the number of task invocations that issued every
// request of their batch.
func (vu *VirtualUser) GetCompleted() int64 {
	return vu.completed.Load()
}

// GetRequests returns the number of requests this VU has recorded.
func (vu *VirtualUser) GetRequests() int64 {
	return vu.requests.Load()
}

// RunTask executes one task invocation of the pattern.
//
// A stop request lets the in-flight request finish and then ends the task
// with a nil error. Context cancellation returns ctx.Err().
func (vu *VirtualUser) RunTask(ctx context.Context) error {
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return fmt.Errorf("VU %d is %s", vu.ID, vu.GetState())
	}
	vu.iteration.Add(1)

	n, err := vu.Pattern.runBatch(ctx, vu.HTTPClient, vu, vu.stopCh)
	if n == vu.Pattern.BatchSize() {
		vu.completed.Add(1)
	}

	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
	return err
}

// Record tags a result with this VU's identity and forwards it to the
// metrics engine.
func (vu *VirtualUser) Record(r metrics.RequestResult) {
	r.VUID = vu.ID
	r.Iteration = vu.iteration.Load()
	vu.requests.Add(1)
	if vu.Metrics != nil {
		vu.Metrics.Record(r)
	}
}

// ThinkTime samples the pause before the next task invocation.
func (vu *VirtualUser) ThinkTime() time.Duration {
	return vu.Pattern.ThinkTime(vu.rng)
}

// Think blocks for a sampled think time, or until ctx is done or the VU is
// asked to stop. It returns false if the wait was interrupted.
func (vu *VirtualUser) Think(ctx context.Context) bool {
	d := vu.ThinkTime()
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-vu.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RequestStop signals the VU to stop after the in-flight request.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// Stopping reports whether a stop has been requested or completed.
func (vu *VirtualUser) Stopping() bool {
	s := vu.GetState()
	return s == VUStateStopping || s == VUStateStopped
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-vu.doneCh:
		return true
	case <-timer.C:
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateStopped {
		return
	}
	if prev != VUStateStopping {
		close(vu.stopCh)
	}
	close(vu.doneCh)
}
