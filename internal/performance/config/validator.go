package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Executor names accepted in ScenarioConfig.Executor.
const (
	ExecutorConstantVUs     = "constant-vus"
	ExecutorPerVUIterations = "per-vu-iterations"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
// Scenarios are checked in name order so messages are stable.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	validateSettings(&c.Settings, errs)

	if len(c.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}

	names := make([]string, 0, len(c.Scenarios))
	for name := range c.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := c.Scenarios[name]
		if sc == nil {
			errs.Add("scenarios."+name, "scenario is empty")
			continue
		}
		validateScenario(name, sc, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSettings(s *GlobalSettings, errs *ValidationErrors) {
	if s.BaseURL == "" {
		errs.Add("settings.baseUrl", "base URL is required")
	} else if u, err := url.Parse(s.BaseURL); err != nil {
		errs.Add("settings.baseUrl", fmt.Sprintf("invalid URL: %v", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add("settings.baseUrl", "must be an absolute http or https URL")
	}

	validatePositiveDuration("settings.timeout", s.Timeout, false, errs)

	if s.MaxConnectionsPerHost < 0 {
		errs.Add("settings.maxConnectionsPerHost", "must be >= 0")
	}
	if s.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "must be >= 0")
	}
}

func validateScenario(name string, sc *ScenarioConfig, errs *ValidationErrors) {
	prefix := "scenarios." + name

	switch sc.Executor {
	case "":
		errs.Add(prefix+".executor", "executor type is required")
	case ExecutorConstantVUs:
		if sc.VUs <= 0 {
			errs.Add(prefix+".vus", "vus must be greater than 0")
		}
		validatePositiveDuration(prefix+".duration", sc.Duration, true, errs)
	case ExecutorPerVUIterations:
		if sc.VUs <= 0 {
			errs.Add(prefix+".vus", "vus must be greater than 0")
		}
		if sc.Iterations <= 0 {
			errs.Add(prefix+".iterations", "iterations must be greater than 0")
		}
		validatePositiveDuration(prefix+".maxDuration", sc.MaxDuration, false, errs)
	default:
		errs.Add(prefix+".executor", fmt.Sprintf("unknown executor type: %s", sc.Executor))
	}

	validatePositiveDuration(prefix+".gracefulStop", sc.GracefulStop, false, errs)
	validateUser(prefix+".user", &sc.User, errs)
}

func validateUser(prefix string, u *UserConfig, errs *ValidationErrors) {
	if u.TeamID != nil && *u.TeamID < 0 {
		errs.Add(prefix+".teamId", "team id must be >= 0")
	}
	if u.BatchSize < 0 {
		errs.Add(prefix+".batchSize", "batch size must be greater than 0")
	}
	if u.Path != "" && !strings.HasPrefix(u.Path, "/") {
		errs.Add(prefix+".path", "path must start with '/'")
	}

	if u.ThinkTime == nil {
		return
	}
	tt, err := u.ParsedThinkTime()
	if err != nil {
		errs.Add(prefix+".thinkTime", err.Error())
		return
	}
	if tt.Min < 0 || tt.Max < 0 {
		errs.Add(prefix+".thinkTime", "bounds must be >= 0")
	}
	if tt.Min > tt.Max {
		errs.Add(prefix+".thinkTime", fmt.Sprintf("min (%s) must not exceed max (%s)", tt.Min, tt.Max))
	}
}

func validatePositiveDuration(field, value string, required bool, errs *ValidationErrors) {
	if value == "" {
		if required {
			errs.Add(field, "duration is required")
		}
		return
	}
	d, err := ParseDurationString(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration: %v", err))
		return
	}
	if d <= 0 {
		errs.Add(field, "duration must be greater than 0")
	}
}
