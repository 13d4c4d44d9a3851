package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/luckeyseven/dashload/internal/performance"
)

//go:embed schema.json
var schemaJSON string

var testConfigSchema = jsonschema.MustCompileString("dashload://schema.json", schemaJSON)

const (
	DefaultTestName     = "team dashboard"
	DefaultTimeout      = "30s"
	DefaultGracefulStop = "30s"
)

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig checks data against the config schema and decodes it.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	if err := CheckSchema(data, isJSON); err != nil {
		return nil, err
	}

	var config TestConfig
	if isJSON {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return &config, nil
}

// CheckSchema validates the raw document structure: unknown keys, wrong
// types, unknown executors. Schema violations are returned as
// *ValidationErrors.
func CheckSchema(data []byte, isJSON bool) error {
	doc, err := toJSONValue(data, isJSON)
	if err != nil {
		return err
	}

	err = testConfigSchema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	errs := &ValidationErrors{}
	collectSchemaErrors(ve, errs)
	return errs
}

// toJSONValue decodes YAML or JSON into the generic form jsonschema expects.
func toJSONValue(data []byte, isJSON bool) (interface{}, error) {
	raw := data
	if !isJSON {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("config is not representable as JSON: %w", err)
		}
		raw = converted
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return v, nil
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(ve.Causes) == 0 {
		field := strings.ReplaceAll(strings.TrimPrefix(ve.InstanceLocation, "/"), "/", ".")
		errs.Add(field, ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Bare seconds: "30", "0.01"
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		return time.Duration(math.Round(secs * float64(time.Second))), nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// durationText holds a duration written either as a string or as a bare
// number of seconds.
type durationText string

func (d *durationText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = durationText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %w", err)
	}
	*d = durationText(n.String())
	return nil
}

func (d *durationText) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string or a number of seconds", node.Line)
	}
	*d = durationText(node.Value)
	return nil
}

type thinkTimeBounds struct {
	Min durationText `json:"min" yaml:"min"`
	Max durationText `json:"max" yaml:"max"`
}

// UnmarshalJSON accepts {"min": "10ms", "max": "200ms"} as well as seconds,
// {"min": 0.01, "max": 0.2}.
func (t *ThinkTimeConfig) UnmarshalJSON(b []byte) error {
	var v thinkTimeBounds
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t.Min, t.Max = string(v.Min), string(v.Max)
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (t *ThinkTimeConfig) UnmarshalYAML(node *yaml.Node) error {
	var v thinkTimeBounds
	if err := node.Decode(&v); err != nil {
		return err
	}
	t.Min, t.Max = string(v.Min), string(v.Max)
	return nil
}

// ApplyDefaults fills unset fields with the team dashboard defaults.
func ApplyDefaults(cfg *TestConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultTestName
	}
	if cfg.Settings.Timeout == "" {
		cfg.Settings.Timeout = DefaultTimeout
	}

	for _, sc := range cfg.Scenarios {
		if sc == nil {
			continue
		}
		if sc.GracefulStop == "" {
			sc.GracefulStop = DefaultGracefulStop
		}
		if sc.User.TeamID == nil {
			id := performance.DefaultTeamID
			sc.User.TeamID = &id
		}
		if sc.User.BatchSize == 0 {
			sc.User.BatchSize = performance.DefaultBatchSize
		}
		if sc.User.Path == "" {
			sc.User.Path = performance.DefaultPathTemplate
		}
		if sc.User.ThinkTime == nil {
			sc.User.ThinkTime = &ThinkTimeConfig{
				Min: performance.DefaultThinkTimeMin.String(),
				Max: performance.DefaultThinkTimeMax.String(),
			}
		}
	}
}

// ParsedThinkTime returns the parsed think time bounds of a user config, using
// the defaults when unset.
func (u *UserConfig) ParsedThinkTime() (performance.ThinkTime, error) {
	if u.ThinkTime == nil {
		return performance.ThinkTime{Min: performance.DefaultThinkTimeMin, Max: performance.DefaultThinkTimeMax}, nil
	}
	lo, err := ParseDurationString(u.ThinkTime.Min)
	if err != nil {
		return performance.ThinkTime{}, fmt.Errorf("thinkTime.min: %w", err)
	}
	hi, err := ParseDurationString(u.ThinkTime.Max)
	if err != nil {
		return performance.ThinkTime{}, fmt.Errorf("thinkTime.max: %w", err)
	}
	return performance.ThinkTime{Min: lo, Max: hi}, nil
}

// ResolvedTeamID returns the configured team ID or the default.
func (u *UserConfig) ResolvedTeamID() int {
	if u.TeamID == nil {
		return performance.DefaultTeamID
	}
	return *u.TeamID
}
