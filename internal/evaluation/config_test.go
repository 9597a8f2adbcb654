package evaluation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/evaluation"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := evaluation.LoadConfig("", "")
	require.NoError(t, err)
	require.Equal(t, "placeholder", cfg.DefaultEvaluator)
	require.Equal(t, 0.7, cfg.Settings("placeholder")["error_probability"])
	require.Empty(t, cfg.Settings("missing"))
}

func TestLoadConfigInlineMergesOverDefaults(t *testing.T) {
	cfg, err := evaluation.LoadConfig(`{"default_evaluator":"llm","placeholder":{"max_errors":2},"llm":{"model":"gpt-4o"}}`, "ignored.yaml")
	require.NoError(t, err)
	require.Equal(t, "llm", cfg.DefaultEvaluator)

	placeholder := cfg.Settings("placeholder")
	require.EqualValues(t, 2, placeholder["max_errors"])
	require.Equal(t, 0.5, placeholder["appeal_success_rate"])
	require.Equal(t, "gpt-4o", cfg.Settings("llm")["model"])
	require.Equal(t, []string{"llm", "placeholder"}, cfg.Names())
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluators.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_evaluator: placeholder\nplaceholder:\n  error_probability: 0.2\n"), 0o600))

	cfg, err := evaluation.LoadConfig("", path)
	require.NoError(t, err)
	require.Equal(t, 0.2, cfg.Settings("placeholder")["error_probability"])
}

func TestLoadConfigRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"default_evaluator":`,
		"probability > 1": `{"placeholder":{"error_probability":1.5}}`,
		"empty default":   `{"default_evaluator":""}`,
		"scalar block":    `{"llm":"gpt-4o"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := evaluation.LoadConfig(doc, "")
			require.ErrorIs(t, err, evaluation.ErrInvalidConfig)
		})
	}

	_, err := evaluation.LoadConfig("", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, evaluation.ErrInvalidConfig)
}

func TestDecodeSettings(t *testing.T) {
	var out struct {
		MaxErrors int `json:"max_errors"`
	}
	require.NoError(t, evaluation.DecodeSettings(map[string]interface{}{"max_errors": 3}, &out))
	require.Equal(t, 3, out.MaxErrors)

	require.ErrorIs(t, evaluation.DecodeSettings(map[string]interface{}{"max_errors": "three"}, &out), evaluation.ErrInvalidConfig)
}
