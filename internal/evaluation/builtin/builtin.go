// Package builtin wires the evaluators shipped with the judge into a registry.
package builtin

import (
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/evaluation/llm"
	"github.com/thanh913/MOOJ/internal/evaluation/placeholder"
)

// Options carries the credentials needed by model backed evaluators.
type Options struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Registry returns a registry containing every built-in evaluator.
func Registry(opts Options) *evaluation.Registry {
	registry := evaluation.NewRegistry()
	registry.Register(placeholder.Name, placeholder.Factory)
	registry.Register(llm.Name, llm.NewFactory(opts.OpenAIAPIKey, opts.OpenAIBaseURL))
	return registry
}

// NewFallbackRouter returns a router that only knows the placeholder evaluator with its
// default settings. It is used when the configured evaluators cannot be loaded.
func NewFallbackRouter(logger zerolog.Logger) (*evaluation.Router, error) {
	registry := evaluation.NewRegistry()
	registry.Register(placeholder.Name, placeholder.Factory)

	cfg := evaluation.DefaultConfig()
	cfg.DefaultEvaluator = placeholder.Name
	return evaluation.NewRouter(cfg, registry, logger)
}

// NewRouter loads the evaluator configuration and builds a router over the built-in registry.
// When allowFallback is set, a configuration or construction failure yields the placeholder
// router instead of an error.
func NewRouter(inline, path string, allowFallback bool, opts Options, logger zerolog.Logger) (*evaluation.Router, error) {
	cfg, err := evaluation.LoadConfig(inline, path)
	if err == nil {
		var router *evaluation.Router
		router, err = evaluation.NewRouter(cfg, Registry(opts), logger)
		if err == nil {
			return router, nil
		}
	}

	if !allowFallback {
		return nil, err
	}
	logger.Warn().Err(err).Msg("evaluator configuration unusable, falling back to placeholder evaluator")
	return NewFallbackRouter(logger)
}
