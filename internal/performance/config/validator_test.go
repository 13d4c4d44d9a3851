package config

import (
	"strings"
	"testing"
)

func validConfig() *TestConfig {
	teamID := 1
	return &TestConfig{
		Name:     "test",
		Settings: GlobalSettings{BaseURL: "http://localhost:8080", Timeout: "5s"},
		Scenarios: map[string]*ScenarioConfig{
			"dashboard": {
				Executor: ExecutorConstantVUs,
				VUs:      2,
				Duration: "10s",
				User: UserConfig{
					TeamID:    &teamID,
					BatchSize: 2000,
					ThinkTime: &ThinkTimeConfig{Min: "10ms", Max: "200ms"},
				},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*TestConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*TestConfig) {}},
		{
			name:    "missing base url",
			mutate:  func(c *TestConfig) { c.Settings.BaseURL = "" },
			wantErr: "settings.baseUrl",
		},
		{
			name:    "relative base url",
			mutate:  func(c *TestConfig) { c.Settings.BaseURL = "localhost:8080" },
			wantErr: "settings.baseUrl",
		},
		{
			name:    "bad timeout",
			mutate:  func(c *TestConfig) { c.Settings.Timeout = "soon" },
			wantErr: "settings.timeout",
		},
		{
			name:    "no scenarios",
			mutate:  func(c *TestConfig) { c.Scenarios = nil },
			wantErr: "at least one scenario",
		},
		{
			name:    "zero vus",
			mutate:  func(c *TestConfig) { c.Scenarios["dashboard"].VUs = 0 },
			wantErr: "scenarios.dashboard.vus",
		},
		{
			name:    "missing duration",
			mutate:  func(c *TestConfig) { c.Scenarios["dashboard"].Duration = "" },
			wantErr: "duration is required",
		},
		{
			name:    "unknown executor",
			mutate:  func(c *TestConfig) { c.Scenarios["dashboard"].Executor = "ramping-vus" },
			wantErr: "unknown executor type",
		},
		{
			name: "iterations required",
			mutate: func(c *TestConfig) {
				c.Scenarios["dashboard"].Executor = ExecutorPerVUIterations
			},
			wantErr: "scenarios.dashboard.iterations",
		},
		{
			name:    "negative team",
			mutate:  func(c *TestConfig) { c.Scenarios["dashboard"].User.TeamID = &negative },
			wantErr: "user.teamId",
		},
		{
			name:    "relative path",
			mutate:  func(c *TestConfig) { c.Scenarios["dashboard"].User.Path = "api/team" },
			wantErr: "user.path",
		},
		{
			name: "inverted think time",
			mutate: func(c *TestConfig) {
				c.Scenarios["dashboard"].User.ThinkTime = &ThinkTimeConfig{Min: "1s", Max: "10ms"}
			},
			wantErr: "must not exceed max",
		},
		{
			name: "bad think time",
			mutate: func(c *TestConfig) {
				c.Scenarios["dashboard"].User.ThinkTime = &ThinkTimeConfig{Min: "x", Max: "10ms"}
			},
			wantErr: "thinkTime.min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Settings.BaseURL = ""
	cfg.Scenarios["dashboard"].VUs = 0

	err := cfg.Validate()
	verrs, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("Validate() error type = %T, want *ValidationErrors", err)
	}
	if len(verrs.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verrs.Errors), verrs)
	}
	if !strings.HasPrefix(verrs.Error(), "2 validation errors") {
		t.Errorf("Error() = %q", verrs.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	withField := &ValidationError{Field: "vus", Message: "must be > 0"}
	if got := withField.Error(); got != "validation error on field 'vus': must be > 0" {
		t.Errorf("Error() = %q", got)
	}
	noField := &ValidationError{Message: "broken"}
	if got := noField.Error(); got != "validation error: broken" {
		t.Errorf("Error() = %q", got)
	}
}
