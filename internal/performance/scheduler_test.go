package performance_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckeyseven/dashload/internal/performance"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

func TestDefaultHTTPClientConfig(t *testing.T) {
	cfg := performance.DefaultHTTPClientConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 100, cfg.MaxIdleConnsPerHost)

	client := performance.NewHTTPClient(cfg)
	assert.Equal(t, 30*time.Second, client.Timeout)
}

func TestScheduler_SingleUserOneInvocation(t *testing.T) {
	log := &requestLog{}
	server := httptest.NewServer(log)
	defer server.Close()

	engine := metrics.NewEngine()
	p := newPattern(t, server.URL, nil)
	s := performance.NewVUScheduler(p, engine, performance.DefaultHTTPClientConfig(), 1)

	vu := s.SpawnVU()
	s.RunVU(context.Background(), vu, 1)

	entries := log.snapshot()
	require.Len(t, entries, 2000)
	for _, e := range entries {
		require.Equal(t, "GET /api/team/1/dashboard", e)
	}
	assert.EqualValues(t, 1, s.GetIterations())
	assert.Equal(t, performance.VUStateStopped, vu.GetState())
	assert.Equal(t, 0, s.GetActiveVUCount())
	assert.EqualValues(t, 2000, engine.GetSnapshot().SuccessRequests)
}

func TestScheduler_ThinkTimeBetweenInvocations(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	log := &requestLog{onHit: func(int) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
	}}
	server := httptest.NewServer(log)
	defer server.Close()

	p := newPattern(t, server.URL, func(c *performance.PatternConfig) {
		c.BatchSize = 2
		c.ThinkTime = performance.ThinkTime{Min: 100 * time.Millisecond, Max: 100 * time.Millisecond}
	})
	s := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 1)

	start := time.Now()
	s.RunVU(context.Background(), s.SpawnVU(), 3)
	elapsed := time.Since(start)

	mu.Lock()
	stamps := append([]time.Time(nil), hits...)
	mu.Unlock()

	require.Len(t, stamps, 6)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 100*time.Millisecond, "pause between tasks")
	assert.GreaterOrEqual(t, stamps[4].Sub(stamps[3]), 100*time.Millisecond, "pause between tasks")
	assert.Less(t, stamps[1].Sub(stamps[0]), 100*time.Millisecond, "no pause inside a task")
	assert.Less(t, elapsed, 300*time.Millisecond+time.Second, "no think time after the last task")
}

func TestScheduler_RunUntilCancelled(t *testing.T) {
	server := httptest.NewServer(&requestLog{})
	defer server.Close()

	p := newPattern(t, server.URL, func(c *performance.PatternConfig) { c.BatchSize = 5 })
	s := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		vu := s.SpawnVU()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunVU(ctx, vu, 0)
		}()
	}
	wg.Wait()

	assert.Greater(t, s.GetIterations(), int64(3))
	assert.Equal(t, 0, s.GetActiveVUCount())
	assert.True(t, s.Shutdown(time.Second))
}

func TestScheduler_Shutdown(t *testing.T) {
	server := httptest.NewServer(&requestLog{})
	defer server.Close()

	p := newPattern(t, server.URL, func(c *performance.PatternConfig) {
		c.BatchSize = 1
		c.ThinkTime = performance.ThinkTime{Min: time.Hour, Max: time.Hour}
	})
	s := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 1)

	vu := s.SpawnVU()
	done := make(chan struct{})
	go func() {
		s.RunVU(context.Background(), vu, 0)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.GetIterations() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.Shutdown(2*time.Second))
	<-done
	assert.Same(t, vu, s.GetVU(vu.ID))
	assert.Equal(t, performance.VUStateStopped, vu.GetState())
}

func TestScheduler_StopAfterLastRequestCountsTask(t *testing.T) {
	var current atomic.Pointer[performance.VirtualUser]
	log := &requestLog{onHit: func(n int) {
		if n == 3 {
			current.Load().RequestStop()
		}
	}}
	server := httptest.NewServer(log)
	defer server.Close()

	p := newPattern(t, server.URL, func(c *performance.PatternConfig) { c.BatchSize = 3 })
	s := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 1)

	vu := s.SpawnVU()
	current.Store(vu)
	s.RunVU(context.Background(), vu, 0)

	assert.Len(t, log.snapshot(), 3)
	assert.EqualValues(t, 1, vu.GetCompleted())
	assert.EqualValues(t, 1, s.GetIterations(), "a full batch counts even when the stop lands on its last request")
}

func thinkTimes(vu *performance.VirtualUser, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = vu.ThinkTime()
	}
	return out
}

func TestScheduler_SeededThinkTimeIsReproducible(t *testing.T) {
	p := newPattern(t, "http://localhost:8080", nil)
	first := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 42)
	second := performance.NewVUScheduler(p, metrics.NewEngine(), performance.DefaultHTTPClientConfig(), 42)

	a1, a2 := first.SpawnVU(), first.SpawnVU()
	b1, b2 := second.SpawnVU(), second.SpawnVU()
	require.Equal(t, a1.ID, b1.ID)
	require.Equal(t, a2.ID, b2.ID)

	seqA1, seqA2 := thinkTimes(a1, 20), thinkTimes(a2, 20)
	assert.Equal(t, seqA1, thinkTimes(b1, 20), "same seed and VU ID give the same sequence")
	assert.Equal(t, seqA2, thinkTimes(b2, 20), "same seed and VU ID give the same sequence")
	assert.NotEqual(t, seqA1, seqA2, "users of one scheduler draw independent sequences")

	for _, d := range append(seqA1, seqA2...) {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}
