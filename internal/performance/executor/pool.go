package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luckeyseven/dashload/internal/performance"
)

// vuPool is the part shared by both executors: spawn N users on a
// scheduler, run each with an iteration cap, and support early Stop.
//
// Ending a run takes two steps. The soft stop (limit expired, parent
// context done, or Stop) asks every user to finish its in-flight request
// and exit. Users still running after the graceful period have their
// requests cancelled.
type vuPool struct {
	mu        sync.Mutex
	scheduler *performance.VUScheduler
	startTime time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	activeVUs atomic.Int32
	running   atomic.Bool
	finished  atomic.Bool
	forced    atomic.Bool
}

func (p *vuPool) stopSignal() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		p.stopCh = make(chan struct{})
	}
	return p.stopCh
}

// run spawns vus users and blocks until all of them exit.
func (p *vuPool) run(ctx context.Context, scheduler *performance.VUScheduler, vus int, limit, graceful time.Duration, maxIterations int64) {
	stopCh := p.stopSignal()

	p.mu.Lock()
	p.scheduler = scheduler
	p.startTime = time.Now()
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()
	defer close(done)

	select {
	case <-stopCh:
		p.finished.Store(true)
		return
	default:
	}

	// Requests outlive ctx until the graceful period has passed.
	reqCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	softCtx, softCancel := ctx, context.CancelFunc(func() {})
	if limit > 0 {
		softCtx, softCancel = context.WithTimeout(ctx, limit)
	}
	defer softCancel()

	p.running.Store(true)

	var wg sync.WaitGroup
	for i := 0; i < vus; i++ {
		vu := scheduler.SpawnVU()
		wg.Add(1)
		p.activeVUs.Add(1)
		go func() {
			defer wg.Done()
			defer p.activeVUs.Add(-1)
			scheduler.RunVU(reqCtx, vu, maxIterations)
		}()
	}

	exited := make(chan struct{})
	go func() {
		wg.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-softCtx.Done():
		p.drain(scheduler, exited, graceful, hardCancel)
	case <-stopCh:
		p.drain(scheduler, exited, graceful, hardCancel)
	}

	p.running.Store(false)
	p.finished.Store(true)
}

// drain stops every user after its in-flight request and cancels what is
// left once graceful has passed.
func (p *vuPool) drain(scheduler *performance.VUScheduler, exited <-chan struct{}, graceful time.Duration, hardCancel context.CancelFunc) {
	scheduler.StopAllVUs()

	timer := time.NewTimer(graceful)
	defer timer.Stop()

	select {
	case <-exited:
	case <-timer.C:
		p.forced.Store(true)
		hardCancel()
		<-exited
	}
}

func (p *vuPool) started() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startTime
}

func (p *vuPool) iterations() int64 {
	p.mu.Lock()
	s := p.scheduler
	p.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.GetIterations()
}

// stop starts the soft stop and waits for the run to end. A stop before run
// makes the later run return at once.
func (p *vuPool) stop(ctx context.Context, graceful time.Duration) error {
	stopCh := p.stopSignal()
	p.stopOnce.Do(func() { close(stopCh) })

	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.forced.Load() {
		return fmt.Errorf("graceful stop timeout after %v", graceful)
	}
	return nil
}
