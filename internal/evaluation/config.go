package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// DefaultEvaluatorName is used when the configuration does not name one.
const DefaultEvaluatorName = "placeholder"

const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "default_evaluator": {"type": "string", "minLength": 1},
    "placeholder": {
      "type": "object",
      "properties": {
        "error_probability": {"type": "number", "minimum": 0, "maximum": 1},
        "max_errors": {"type": "integer", "minimum": 0},
        "appeal_success_rate": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "llm": {
      "type": "object",
      "properties": {
        "model": {"type": "string", "minLength": 1},
        "temperature": {"type": "number", "minimum": 0, "maximum": 2},
        "max_tokens": {"type": "integer", "minimum": 1},
        "significant_penalty": {"type": "integer", "minimum": 0, "maximum": 100},
        "minor_penalty": {"type": "integer", "minimum": 0, "maximum": 100}
      }
    }
  },
  "additionalProperties": {"type": "object"}
}`

var compiledConfigSchema = jsonschema.MustCompileString("evaluator_config.schema.json", configSchema)

// Config selects the default evaluator and carries per-evaluator settings.
type Config struct {
	DefaultEvaluator string
	Evaluators       map[string]map[string]interface{}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		DefaultEvaluator: DefaultEvaluatorName,
		Evaluators: map[string]map[string]interface{}{
			"placeholder": {
				"error_probability":   0.7,
				"max_errors":          4,
				"appeal_success_rate": 0.5,
			},
		},
	}
}

// Settings returns the configuration block of the named evaluator.
func (c Config) Settings(name string) map[string]interface{} {
	if settings, ok := c.Evaluators[name]; ok {
		return settings
	}
	return map[string]interface{}{}
}

// Names lists the default evaluator followed by every other configured evaluator.
func (c Config) Names() []string {
	names := []string{c.DefaultEvaluator}
	for name := range c.Evaluators {
		if name != c.DefaultEvaluator {
			names = append(names, name)
		}
	}
	return names
}

// MarshalJSON renders the configuration in its file layout.
func (c Config) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(c.Evaluators)+1)
	for name, settings := range c.Evaluators {
		doc[name] = settings
	}
	doc["default_evaluator"] = c.DefaultEvaluator
	return json.Marshal(doc)
}

// LoadConfig reads the evaluator configuration from an inline JSON document or a file.
// Inline wins over path; with neither the defaults are returned.
func LoadConfig(inline, path string) (Config, error) {
	if strings.TrimSpace(inline) != "" {
		return ParseConfig([]byte(inline), "json")
	}
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseConfig(raw, format)
}

// ParseConfig validates a JSON or YAML document and merges it over the defaults.
func ParseConfig(raw []byte, format string) (Config, error) {
	if format == "yaml" {
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		raw = converted
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := compiledConfigSchema.Validate(doc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	fields, _ := doc.(map[string]interface{})
	cfg := DefaultConfig()
	for key, value := range fields {
		if key == "default_evaluator" {
			cfg.DefaultEvaluator = value.(string)
			continue
		}
		overrides, _ := value.(map[string]interface{})
		merged := make(map[string]interface{}, len(overrides))
		for k, v := range cfg.Evaluators[key] {
			merged[k] = v
		}
		for k, v := range overrides {
			merged[k] = v
		}
		cfg.Evaluators[key] = merged
	}

	return cfg, nil
}

// DecodeSettings copies a settings block into a typed struct using its json tags.
func DecodeSettings(settings map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
