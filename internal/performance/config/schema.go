// Package config provides parsing and validation of dashload test files.
package config

// TestConfig is the root configuration for a load test.
//
// Example YAML:
//
//	name: "team dashboard"
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  timeout: 30s
//	scenarios:
//	  dashboard:
//	    executor: constant-vus
//	    vus: 10
//	    duration: 1m
//	    user:
//	      teamId: 1
//	      batchSize: 2000
//	      path: /api/team/{teamId}/dashboard
//	      thinkTime:
//	        min: 10ms
//	        max: 200ms
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the test (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains global settings for all scenarios
	Settings GlobalSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Scenarios maps a scenario name to one simulated user variant and its load shape.
	// Each scenario runs independently with its own executor
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Options for test execution
	Options *ExecutionOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// GlobalSettings contains global HTTP settings.
type GlobalSettings struct {
	// BaseURL is the target host for every scenario
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the HTTP request timeout
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	MaxConnectionsPerHost int `json:"maxConnectionsPerHost,omitempty" yaml:"maxConnectionsPerHost,omitempty"`
	MaxIdleConnsPerHost   int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	DisableKeepAlives bool `json:"disableKeepAlives,omitempty" yaml:"disableKeepAlives,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is sent with every request when set
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Headers are default headers applied to all requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ScenarioConfig defines one simulated user variant and how many of it run.
type ScenarioConfig struct {
	// Executor is "constant-vus" or "per-vu-iterations"
	Executor string `json:"executor" yaml:"executor"`

	// VUs is the number of concurrent simulated users
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Duration is how long constant-vus runs (e.g. "30s", "2m")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Iterations is the number of task invocations per user (per-vu-iterations)
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// MaxDuration caps a per-vu-iterations run
	MaxDuration string `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	// GracefulStop is how long to wait for users to finish on stop
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Seed fixes the think time random sequence; 0 seeds from the clock
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	User UserConfig `json:"user" yaml:"user"`
}

// UserConfig is the dashboard load pattern of a scenario.
type UserConfig struct {
	// TeamID is the team whose dashboard is requested; nil means the default (1)
	TeamID *int `json:"teamId,omitempty" yaml:"teamId,omitempty"`

	// BatchSize is the number of GETs per task invocation (default 2000)
	BatchSize int `json:"batchSize,omitempty" yaml:"batchSize,omitempty"`

	// Path is the request path template; "{teamId}" is substituted
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	ThinkTime *ThinkTimeConfig `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// Headers extend the global headers for this scenario
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// ThinkTimeConfig bounds the random pause between task invocations.
type ThinkTimeConfig struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

// ExecutionOptions controls test execution behavior.
type ExecutionOptions struct {
	// Sequential runs scenarios one-by-one instead of in parallel
	Sequential bool `json:"sequential,omitempty" yaml:"sequential,omitempty"`
}
