package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: team dashboard
settings:
  baseUrl: http://localhost:8080
  timeout: 10s
  headers:
    Authorization: Bearer abc
scenarios:
  dashboard:
    executor: constant-vus
    vus: 5
    duration: 1m
    user:
      teamId: 42
      batchSize: 100
      thinkTime:
        min: 10ms
        max: 200ms
`

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "milliseconds", input: "200ms", expected: 200 * time.Millisecond},
		{name: "combined duration", input: "1h30m", expected: 90 * time.Minute},
		{name: "integer as seconds", input: "30", expected: 30 * time.Second},
		{name: "fractional seconds", input: "0.01", expected: 10 * time.Millisecond},
		{name: "fractional seconds upper", input: "0.2", expected: 200 * time.Millisecond},
		{name: "not a number", input: "NaN", wantErr: true},
		{name: "empty string", input: "", expected: 0},
		{name: "invalid format", input: "abc", wantErr: true},
		{name: "trailing garbage", input: "30abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDurationString(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationString(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "team dashboard", cfg.Name)
	assert.Equal(t, "http://localhost:8080", cfg.Settings.BaseURL)
	assert.Equal(t, "Bearer abc", cfg.Settings.Headers["Authorization"])

	sc := cfg.Scenarios["dashboard"]
	require.NotNil(t, sc)
	assert.Equal(t, ExecutorConstantVUs, sc.Executor)
	assert.Equal(t, 5, sc.VUs)
	assert.Equal(t, 42, sc.User.ResolvedTeamID())
	assert.Equal(t, 100, sc.User.BatchSize)

	tt, err := sc.User.ParsedThinkTime()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, tt.Min)
	assert.Equal(t, 200*time.Millisecond, tt.Max)

	require.NoError(t, cfg.Validate())
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{
		"settings": {"baseUrl": "http://localhost:8080"},
		"scenarios": {
			"once": {"executor": "per-vu-iterations", "vus": 1, "iterations": 1, "user": {"teamId": 0}}
		}
	}`

	cfg, err := ParseConfig([]byte(data), "test.json")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	sc := cfg.Scenarios["once"]
	assert.Equal(t, ExecutorPerVUIterations, sc.Executor)
	assert.EqualValues(t, 1, sc.Iterations)
	assert.Equal(t, 0, sc.User.ResolvedTeamID(), "explicit team 0 is kept")
}

func TestParseConfig_ThinkTimeInSeconds(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
	}{
		{
			name: "yaml numbers",
			path: "test.yaml",
			data: `
scenarios:
  dashboard:
    executor: per-vu-iterations
    iterations: 1
    user:
      thinkTime: {min: 0.01, max: 0.2}
`,
		},
		{
			name: "yaml decimal strings",
			path: "test.yaml",
			data: `
scenarios:
  dashboard:
    executor: per-vu-iterations
    iterations: 1
    user:
      thinkTime: {min: "0.01", max: "0.2"}
`,
		},
		{
			name: "json numbers",
			path: "test.json",
			data: `{"scenarios": {"dashboard": {"executor": "per-vu-iterations", "iterations": 1,
				"user": {"thinkTime": {"min": 0.01, "max": 0.2}}}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.data), tt.path)
			require.NoError(t, err)

			got, err := cfg.Scenarios["dashboard"].User.ParsedThinkTime()
			require.NoError(t, err)
			assert.Equal(t, 10*time.Millisecond, got.Min)
			assert.Equal(t, 200*time.Millisecond, got.Max)
		})
	}
}

func TestParseConfig_NegativeThinkTimeSeconds(t *testing.T) {
	data := `
scenarios:
  dashboard:
    executor: per-vu-iterations
    iterations: 1
    user:
      thinkTime: {min: -1, max: 0.2}
`
	_, err := ParseConfig([]byte(data), "test.yaml")
	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
}

func TestParseConfig_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{
			name:  "unknown executor",
			data:  "scenarios:\n  a:\n    executor: ramping-vus\n",
			field: "scenarios.a.executor",
		},
		{
			name:  "unknown user key",
			data:  "scenarios:\n  a:\n    executor: constant-vus\n    user:\n      team: 1\n",
			field: "scenarios.a.user",
		},
		{
			name:  "string team id",
			data:  "scenarios:\n  a:\n    executor: constant-vus\n    user:\n      teamId: one\n",
			field: "scenarios.a.user.teamId",
		},
		{
			name:  "relative path",
			data:  "scenarios:\n  a:\n    executor: constant-vus\n    user:\n      path: api\n",
			field: "scenarios.a.user.path",
		},
		{
			name:  "missing scenarios",
			data:  "name: x\n",
			field: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), "test.yaml")
			require.Error(t, err)

			var verrs *ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %T: %v", err, err)

			fields := make([]string, 0, len(verrs.Errors))
			for _, e := range verrs.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestParseConfig_MalformedYAML(t *testing.T) {
	_, err := ParseConfig([]byte("scenarios: [unclosed"), "bad.yml")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dash.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Scenarios, 1)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &TestConfig{
		Settings: GlobalSettings{BaseURL: "http://localhost"},
		Scenarios: map[string]*ScenarioConfig{
			"dashboard": {Executor: ExecutorConstantVUs, VUs: 1, Duration: "1s"},
		},
	}

	ApplyDefaults(cfg)

	assert.Equal(t, DefaultTestName, cfg.Name)
	assert.Equal(t, "30s", cfg.Settings.Timeout)

	sc := cfg.Scenarios["dashboard"]
	assert.Equal(t, "30s", sc.GracefulStop)
	require.NotNil(t, sc.User.TeamID)
	assert.Equal(t, 1, *sc.User.TeamID)
	assert.Equal(t, 2000, sc.User.BatchSize)
	assert.Equal(t, "/api/team/{teamId}/dashboard", sc.User.Path)
	require.NotNil(t, sc.User.ThinkTime)
	assert.Equal(t, "10ms", sc.User.ThinkTime.Min)
	assert.Equal(t, "200ms", sc.User.ThinkTime.Max)

	require.NoError(t, cfg.Validate())
}
