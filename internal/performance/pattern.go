// Package performance implements the team dashboard load pattern and the
// virtual users that execute it.
package performance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/metrics"
)

const (
	// DefaultTeamID is the team whose dashboard is requested when none is configured.
	DefaultTeamID = 1

	// DefaultBatchSize is the number of GET requests issued per task invocation.
	DefaultBatchSize = 2000

	// DefaultPathTemplate is the dashboard endpoint, with TeamIDPlaceholder
	// substituted at construction.
	DefaultPathTemplate = "/api/team/" + TeamIDPlaceholder + "/dashboard"

	// TeamIDPlaceholder is replaced with the configured team ID.
	TeamIDPlaceholder = "{teamId}"

	DefaultThinkTimeMin = 10 * time.Millisecond
	DefaultThinkTimeMax = 200 * time.Millisecond

	// DefaultRequestName tags dashboard requests in per-request metrics.
	DefaultRequestName = "team_dashboard"
)

// ErrInvalidPattern wraps every pattern configuration error.
var ErrInvalidPattern = errors.New("invalid load pattern")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives the outcome of every request a task issues.
type Recorder interface {
	Record(result metrics.RequestResult)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(metrics.RequestResult)

// Record calls f(result).
func (f RecorderFunc) Record(result metrics.RequestResult) { f(result) }

// ThinkTime is a closed interval [Min, Max] of pause durations applied
// between task invocations.
type ThinkTime struct {
	Min time.Duration `json:"min" yaml:"min"`
	Max time.Duration `json:"max" yaml:"max"`
}

// Sample draws a uniformly distributed duration from [Min, Max].
func (t ThinkTime) Sample(rng *rand.Rand) time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	return t.Min + time.Duration(rng.Int63n(int64(t.Max-t.Min)+1))
}

// PatternConfig describes one simulated user variant.
type PatternConfig struct {
	// Name tags requests in per-request metrics
	Name string

	// BaseURL is the target host, e.g. http://localhost:8080
	BaseURL string

	TeamID int

	// BatchSize is how many GET requests a single task invocation issues
	BatchSize int

	// PathTemplate may contain TeamIDPlaceholder
	PathTemplate string

	ThinkTime ThinkTime

	// Headers are added to every request
	Headers map[string]string
}

// DefaultPatternConfig returns the team 1 dashboard configuration against baseURL.
func DefaultPatternConfig(baseURL string) PatternConfig {
	return PatternConfig{
		Name:         DefaultRequestName,
		BaseURL:      baseURL,
		TeamID:       DefaultTeamID,
		BatchSize:    DefaultBatchSize,
		PathTemplate: DefaultPathTemplate,
		ThinkTime:    ThinkTime{Min: DefaultThinkTimeMin, Max: DefaultThinkTimeMax},
	}
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidPattern on the first problem found.
func (c PatternConfig) Validate() error {
	if c.TeamID < 0 {
		return fmt.Errorf("%w: team id must be >= 0, got %d", ErrInvalidPattern, c.TeamID)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be > 0, got %d", ErrInvalidPattern, c.BatchSize)
	}
	if c.PathTemplate == "" || !strings.HasPrefix(c.PathTemplate, "/") {
		return fmt.Errorf("%w: path template must start with '/', got %q", ErrInvalidPattern, c.PathTemplate)
	}
	if c.ThinkTime.Min < 0 || c.ThinkTime.Max < 0 {
		return fmt.Errorf("%w: think time bounds must be >= 0", ErrInvalidPattern)
	}
	if c.ThinkTime.Min > c.ThinkTime.Max {
		return fmt.Errorf("%w: think time min %v exceeds max %v", ErrInvalidPattern, c.ThinkTime.Min, c.ThinkTime.Max)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base url: %v", ErrInvalidPattern, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url must be an absolute http(s) URL, got %q", ErrInvalidPattern, c.BaseURL)
	}
	return nil
}

// DashboardLoadPattern is the work a simulated user performs: on each task
// invocation, BatchSize sequential GETs of the team dashboard, with a random
// think time between invocations.
//
// A pattern is immutable after construction and safe for concurrent use by
// any number of virtual users.
type DashboardLoadPattern struct {
	config PatternConfig
	path   string
	url    string
}

// NewDashboardLoadPattern validates cfg and resolves the request URL.
func NewDashboardLoadPattern(cfg PatternConfig) (*DashboardLoadPattern, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultRequestName
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers

	path := strings.ReplaceAll(cfg.PathTemplate, TeamIDPlaceholder, strconv.Itoa(cfg.TeamID))
	return &DashboardLoadPattern{
		config: cfg,
		path:   path,
		url:    strings.TrimRight(cfg.BaseURL, "/") + path,
	}, nil
}

// Config returns a copy of the pattern's configuration.
func (p *DashboardLoadPattern) Config() PatternConfig {
	cfg := p.config
	cfg.Headers = make(map[string]string, len(p.config.Headers))
	for k, v := range p.config.Headers {
		cfg.Headers[k] = v
	}
	return cfg
}

// TeamID returns the team whose dashboard is requested.
func (p *DashboardLoadPattern) TeamID() int { return p.config.TeamID }

// BatchSize returns the number of requests per task invocation.
func (p *DashboardLoadPattern) BatchSize() int { return p.config.BatchSize }

// Path returns the request path with the team ID substituted.
func (p *DashboardLoadPattern) Path() string { return p.path }

// URL returns the absolute request URL.
func (p *DashboardLoadPattern) URL() string { return p.url }

// ThinkTime draws the pause to apply before the next task invocation.
func (p *DashboardLoadPattern) ThinkTime(rng *rand.Rand) time.Duration {
	return p.config.ThinkTime.Sample(rng)
}

// ExecuteTask issues BatchSize sequential GET requests to the dashboard,
// reporting each outcome to rec. Request failures are recorded, never
// returned or retried. The only error is ctx's, checked before each request;
// a request aborted by cancellation is not recorded.
func (p *DashboardLoadPattern) ExecuteTask(ctx context.Context, client Doer, rec Recorder) error {
	_, err := p.runBatch(ctx, client, rec, nil)
	return err
}

// runBatch is ExecuteTask with an additional soft stop channel: when stop
// closes, the batch ends after the in-flight request without an error.
// It returns the number of requests recorded.
func (p *DashboardLoadPattern) runBatch(ctx context.Context, client Doer, rec Recorder, stop <-chan struct{}) (int, error) {
	for i := 0; i < p.config.BatchSize; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if stop != nil {
			select {
			case <-stop:
				return i, nil
			default:
			}
		}

		res := p.do(ctx, client)
		if res.Error != nil && ctx.Err() != nil {
			return i, ctx.Err()
		}
		rec.Record(res)
	}
	return p.config.BatchSize, nil
}

// do performs one dashboard GET and measures it.
func (p *DashboardLoadPattern) do(ctx context.Context, client Doer) metrics.RequestResult {
	start := time.Now()
	res := metrics.RequestResult{
		Name:      p.config.Name,
		Method:    http.MethodGet,
		Path:      p.path,
		StartTime: start,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		res.Duration = time.Since(start)
		res.Error = fmt.Errorf("failed to build request: %w", err)
		return res
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		res.Duration = time.Since(start)
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	res.Duration = time.Since(start)
	res.StatusCode = resp.StatusCode
	res.BytesReceived = n
	if err != nil {
		res.Error = fmt.Errorf("failed to read response body: %w", err)
	}
	return res
}
