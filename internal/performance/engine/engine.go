// Package engine runs every scenario of a dashload test configuration.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luckeyseven/dashload/internal/logger"
	"github.com/luckeyseven/dashload/internal/performance"
	"github.com/luckeyseven/dashload/internal/performance/config"
	"github.com/luckeyseven/dashload/internal/performance/executor"
	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

// Engine is the orchestrator for a load test.
//
// It coordinates:
//   - configuration validation and defaults
//   - one pattern, scheduler and executor per scenario
//   - metrics collection and aggregation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("dashboard.yaml")
//	eng, _ := engine.NewEngine(cfg)
//	result, _ := eng.Run(context.Background())
//	fmt.Println(result.Metrics.TotalRequests)
type Engine struct {
	config     *config.TestConfig
	httpConfig performance.HTTPClientConfig
	log        *logger.Logger
	observer   func(metrics.RequestResult)

	scenarios map[string]*ScenarioRunner
	mu        sync.RWMutex

	startTime     time.Time
	running       bool
	stopRequested bool
}

// ScenarioRunner manages the execution of a single scenario.
type ScenarioRunner struct {
	Name      string
	Config    *config.ScenarioConfig
	Pattern   *performance.DashboardLoadPattern
	Executor  executor.Executor
	Scheduler *performance.VUScheduler
	Metrics   *metrics.Engine
	Result    *ScenarioResult
}

// ScenarioResult contains the results of a single scenario.
type ScenarioResult struct {
	Name       string        `json:"name"`
	Executor   string        `json:"executor"`
	TeamID     int           `json:"teamId"`
	Path       string        `json:"path"`
	BatchSize  int           `json:"batchSize"`
	Duration   time.Duration `json:"duration"`
	Iterations int64         `json:"iterations"`

	Metrics      *metrics.Snapshot       `json:"metrics"`
	RequestStats map[string]RequestStats `json:"requestStats,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// RequestStats contains statistics for a specific request.
type RequestStats struct {
	Name    string               `json:"name"`
	Count   int64                `json:"count"`
	Latency metrics.LatencyStats `json:"latency"`
}

// TestResult contains the complete test results.
type TestResult struct {
	// ID is a time-ordered UUIDv7
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Scenarios map[string]*ScenarioResult `json:"scenarios"`

	// Aggregated metrics across all scenarios
	Metrics *metrics.Snapshot `json:"metrics"`

	Error string `json:"error,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver registers a callback invoked for every request result, from
// the goroutine of the user that made the request.
func WithObserver(fn func(metrics.RequestResult)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// NewEngine validates cfg, applies defaults and returns an engine ready to Run.
func NewEngine(cfg *config.TestConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.ApplyDefaults(cfg)

	timeout, err := config.ParseDurationString(cfg.Settings.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid settings.timeout: %w", err)
	}

	httpConfig := performance.DefaultHTTPClientConfig()
	httpConfig.Timeout = timeout
	httpConfig.MaxConnsPerHost = cfg.Settings.MaxConnectionsPerHost
	httpConfig.DisableKeepAlives = cfg.Settings.DisableKeepAlives
	httpConfig.InsecureSkipVerify = cfg.Settings.InsecureSkipVerify
	if cfg.Settings.MaxIdleConnsPerHost > 0 {
		httpConfig.MaxIdleConnsPerHost = cfg.Settings.MaxIdleConnsPerHost
	}

	e := &Engine{
		config:     cfg,
		httpConfig: httpConfig,
		log:        logger.GetLogger(),
		scenarios:  make(map[string]*ScenarioRunner),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// PatternConfig builds the dashboard pattern of one scenario. Global headers
// come first and scenario headers override them.
func PatternConfig(name string, settings config.GlobalSettings, user *config.UserConfig) (performance.PatternConfig, error) {
	thinkTime, err := user.ParsedThinkTime()
	if err != nil {
		return performance.PatternConfig{}, err
	}

	cfg := performance.DefaultPatternConfig(settings.BaseURL)
	cfg.Name = name
	cfg.TeamID = user.ResolvedTeamID()
	cfg.ThinkTime = thinkTime
	if user.BatchSize > 0 {
		cfg.BatchSize = user.BatchSize
	}
	if user.Path != "" {
		cfg.PathTemplate = user.Path
	}

	headers := make(map[string]string, len(settings.Headers)+len(user.Headers)+1)
	if settings.UserAgent != "" {
		headers["User-Agent"] = settings.UserAgent
	}
	for k, v := range settings.Headers {
		headers[k] = v
	}
	for k, v := range user.Headers {
		headers[k] = v
	}
	if len(headers) > 0 {
		cfg.Headers = headers
	}

	return cfg, nil
}

// Run executes all scenarios and returns the test results.
//
// By default, all scenarios run concurrently. If Options.Sequential is true,
// scenarios run one at a time in name order.
//
// Cancelling ctx or calling Stop ends every scenario after the in-flight
// requests; the partial result is returned with Error set and a nil error.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.stopRequested = false
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.Must(uuid.NewV7()).String()
	log := e.log.WithRunID(runID)

	if err := e.initializeScenarios(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize scenarios: %w", err)
	}
	log.Info("test started", "name", e.config.Name, "scenarios", len(e.scenarios))

	var scenarioResults map[string]*ScenarioResult
	var runErr error
	if e.config.Options != nil && e.config.Options.Sequential {
		scenarioResults, runErr = e.runScenariosSequentially(ctx, log)
	} else {
		scenarioResults, runErr = e.runScenariosConcurrently(ctx, log)
	}

	end := time.Now()
	result := &TestResult{
		ID:          runID,
		Name:        e.config.Name,
		Description: e.config.Description,
		StartTime:   e.startTime,
		EndTime:     end,
		Duration:    end.Sub(e.startTime),
		Scenarios:   scenarioResults,
		Metrics:     e.GetMetrics(),
	}
	switch {
	case runErr != nil:
		result.Error = runErr.Error()
	case ctx.Err() != nil:
		result.Error = fmt.Sprintf("interrupted: %v", ctx.Err())
	case e.wasStopped():
		result.Error = "stopped before completion"
	}

	log.Info("test finished",
		"duration", result.Duration,
		"requests", result.Metrics.TotalRequests,
		"failed", result.Metrics.FailedRequests)

	return result, runErr
}

func (e *Engine) initializeScenarios(ctx context.Context) error {
	runners := make(map[string]*ScenarioRunner, len(e.config.Scenarios))

	for name, sc := range e.config.Scenarios {
		patternConfig, err := PatternConfig(name, e.config.Settings, &sc.User)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		pattern, err := performance.NewDashboardLoadPattern(patternConfig)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}

		metricsConfig := metrics.DefaultEngineConfig()
		metricsConfig.Observer = e.observer
		scenarioMetrics := metrics.NewEngineWithConfig(metricsConfig)

		scheduler := performance.NewVUScheduler(pattern, scenarioMetrics, e.httpConfig, sc.Seed)
		scheduler.SetLogger(e.log.WithScenario(name))

		exec, _, err := executor.CreateExecutorFromScenarioConfig(ctx, name, sc)
		if err != nil {
			return fmt.Errorf("failed to create executor for scenario %s: %w", name, err)
		}

		runners[name] = &ScenarioRunner{
			Name:      name,
			Config:    sc,
			Pattern:   pattern,
			Executor:  exec,
			Scheduler: scheduler,
			Metrics:   scenarioMetrics,
		}
	}

	e.mu.Lock()
	e.scenarios = runners
	e.mu.Unlock()
	return nil
}

func (e *Engine) runScenariosConcurrently(ctx context.Context, log *logger.Logger) (map[string]*ScenarioResult, error) {
	results := make(map[string]*ScenarioResult)
	var resultsMu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for name, runner := range e.runners() {
		wg.Add(1)
		go func(name string, runner *ScenarioRunner) {
			defer wg.Done()

			result, err := e.runScenario(ctx, runner, log)

			resultsMu.Lock()
			defer resultsMu.Unlock()
			results[name] = result
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("scenario %s failed: %w", name, err)
			}
		}(name, runner)
	}

	wg.Wait()
	return results, firstErr
}

func (e *Engine) runScenariosSequentially(ctx context.Context, log *logger.Logger) (map[string]*ScenarioResult, error) {
	results := make(map[string]*ScenarioResult)
	runners := e.runners()

	names := make([]string, 0, len(runners))
	for name := range runners {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil || e.wasStopped() {
			break
		}

		result, err := e.runScenario(ctx, runners[name], log)
		results[name] = result
		if err != nil {
			return results, fmt.Errorf("scenario %s failed: %w", name, err)
		}
	}

	return results, nil
}

func (e *Engine) runScenario(ctx context.Context, runner *ScenarioRunner, log *logger.Logger) (*ScenarioResult, error) {
	log = log.WithScenario(runner.Name)
	log.Info("scenario started",
		"executor", runner.Executor.Type(),
		"team_id", runner.Pattern.TeamID(),
		"url", runner.Pattern.URL(),
		"batch_size", runner.Pattern.BatchSize())

	startTime := time.Now()
	err := runner.Executor.Run(ctx, runner.Scheduler, runner.Metrics)
	duration := time.Since(startTime)

	if !runner.Scheduler.Shutdown(runner.gracefulStop()) {
		log.Warn("users still running after graceful stop")
	}

	requestStats := make(map[string]RequestStats)
	for reqName, latency := range runner.Metrics.GetRequestStats() {
		requestStats[reqName] = RequestStats{
			Name:    reqName,
			Count:   latency.Count,
			Latency: latency,
		}
	}

	snapshot := runner.Metrics.GetSnapshot()
	result := &ScenarioResult{
		Name:         runner.Name,
		Executor:     string(runner.Executor.Type()),
		TeamID:       runner.Pattern.TeamID(),
		Path:         runner.Pattern.Path(),
		BatchSize:    runner.Pattern.BatchSize(),
		Duration:     duration,
		Iterations:   runner.Executor.GetStats().Iterations,
		Metrics:      snapshot,
		RequestStats: requestStats,
	}
	if err != nil {
		result.Error = err.Error()
	}

	log.Info("scenario finished",
		"duration", duration,
		"iterations", result.Iterations,
		"requests", snapshot.TotalRequests,
		"failed", snapshot.FailedRequests)

	e.mu.Lock()
	runner.Result = result
	e.mu.Unlock()
	return result, err
}

func (r *ScenarioRunner) gracefulStop() time.Duration {
	if d, err := config.ParseDurationString(r.Config.GracefulStop); err == nil && d > 0 {
		return d
	}
	return executor.DefaultGracefulStop
}

func (e *Engine) runners() map[string]*ScenarioRunner {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*ScenarioRunner, len(e.scenarios))
	for k, v := range e.scenarios {
		out[k] = v
	}
	return out
}

// GetConfig returns the test configuration.
func (e *Engine) GetConfig() *config.TestConfig {
	return e.config
}

// GetMetrics returns a snapshot merged across every scenario, or nil before Run.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	runners := e.runners()
	if len(runners) == 0 {
		return nil
	}

	merged := metrics.NewEngine()
	for _, r := range runners {
		merged.Merge(r.Metrics)
	}
	return merged.GetSnapshot()
}

func (e *Engine) wasStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopRequested
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop gracefully stops the engine and all running scenarios.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.IsRunning() {
		return nil
	}

	e.mu.Lock()
	e.stopRequested = true
	e.mu.Unlock()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		lastErr error
	)
	for _, runner := range e.runners() {
		wg.Add(1)
		go func(exec executor.Executor) {
			defer wg.Done()
			if err := exec.Stop(ctx); err != nil {
				errMu.Lock()
				lastErr = err
				errMu.Unlock()
			}
		}(runner.Executor)
	}
	wg.Wait()
	return lastErr
}

// GetProgress returns the overall test progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	runners := e.runners()
	if len(runners) == 0 {
		return 0.0
	}

	var total float64
	for _, runner := range runners {
		total += runner.Executor.GetProgress()
	}
	return total / float64(len(runners))
}

// GetScenarioStats returns current stats for all scenarios.
func (e *Engine) GetScenarioStats() map[string]*executor.Stats {
	stats := make(map[string]*executor.Stats)
	for name, runner := range e.runners() {
		stats[name] = runner.Executor.GetStats()
	}
	return stats
}
