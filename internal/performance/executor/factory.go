package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luckeyseven/dashload/internal/performance/config"
)

// NewExecutor creates a new executor of the specified type.
//
// Supported types:
//   - "constant-vus" - Fixed number of VUs for a duration
//   - "per-vu-iterations" - Fixed number of task invocations per VU
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	case TypePerVUIterations:
		return NewPerVUIterations(), nil
	default:
		return nil, errors.New(unknownTypeMessage(executorType))
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// CreateExecutorFromScenarioConfig creates and initializes an executor from a scenario config.
func CreateExecutorFromScenarioConfig(ctx context.Context, name string, sc *config.ScenarioConfig) (Executor, *Config, error) {
	execConfig, err := convertScenarioToExecutorConfig(name, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert scenario config: %w", err)
	}

	exec, err := CreateAndInitExecutor(ctx, execConfig)
	if err != nil {
		return nil, nil, err
	}

	return exec, execConfig, nil
}

func convertScenarioToExecutorConfig(name string, sc *config.ScenarioConfig) (*Config, error) {
	cfg := &Config{
		Name:       name,
		Type:       Type(sc.Executor),
		VUs:        sc.VUs,
		Iterations: sc.Iterations,
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"duration", sc.Duration, &cfg.Duration},
		{"maxDuration", sc.MaxDuration, &cfg.MaxDuration},
		{"gracefulStop", sc.GracefulStop, &cfg.GracefulStop},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		dur, err := config.ParseDurationString(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.field, err)
		}
		*d.dst = dur
	}

	return cfg, nil
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeConstantVUs, TypePerVUIterations:
		return true
	default:
		return false
	}
}

func unknownTypeMessage(t Type) string {
	names := make([]string, 0, 2)
	for _, s := range GetSupportedExecutors() {
		names = append(names, string(s))
	}
	return fmt.Sprintf("unknown executor type: %s (supported: %s)", t, strings.Join(names, ", "))
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{TypeConstantVUs, TypePerVUIterations}
}
