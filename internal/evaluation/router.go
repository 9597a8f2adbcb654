package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/observability"
)

// Router resolves evaluator names to cached instances and forwards calls to them.
type Router struct {
	cfg      Config
	registry *Registry
	logger   zerolog.Logger
	tracer   trace.Tracer

	mu    sync.Mutex
	cache map[string]Evaluator
}

// NewRouter validates the configuration against the registry and instantiates the default
// evaluator. Any unknown name or failing factory is returned as an error.
func NewRouter(cfg Config, registry *Registry, logger zerolog.Logger) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if cfg.DefaultEvaluator == "" {
		cfg.DefaultEvaluator = DefaultEvaluatorName
	}
	if cfg.Evaluators == nil {
		cfg.Evaluators = map[string]map[string]interface{}{}
	}

	router := &Router{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With().Str("component", "evaluator_router").Logger(),
		tracer:   otel.Tracer("github.com/thanh913/MOOJ/internal/evaluation"),
		cache:    make(map[string]Evaluator),
	}

	if _, ok := registry.Lookup(cfg.DefaultEvaluator); !ok {
		return nil, fmt.Errorf("%w: default evaluator %q", ErrUnknownEvaluator, cfg.DefaultEvaluator)
	}
	for name := range cfg.Evaluators {
		if _, ok := registry.Lookup(name); !ok {
			router.logger.Warn().Str("evaluator", name).Msg("configuration block for unregistered evaluator ignored")
		}
	}

	if _, err := router.Get(""); err != nil {
		return nil, err
	}

	router.logger.Info().Str("default_evaluator", cfg.DefaultEvaluator).Msg("evaluator router initialised")
	return router, nil
}

// DefaultName returns the evaluator used when callers do not pick one.
func (r *Router) DefaultName() string {
	return r.cfg.DefaultEvaluator
}

// Get returns the cached evaluator for name, building it on first use. An empty name selects
// the default evaluator.
func (r *Router) Get(name string) (Evaluator, error) {
	if name == "" {
		name = r.cfg.DefaultEvaluator
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if evaluator, ok := r.cache[name]; ok {
		return evaluator, nil
	}

	factory, ok := r.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvaluator, name)
	}

	evaluator, err := factory(r.cfg.Settings(name), r.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: build evaluator %s: %v", ErrInvalidConfig, name, err)
	}

	r.cache[name] = evaluator
	return evaluator, nil
}

// FindErrors runs the named evaluator's error detection. Every returned error starts active.
func (r *Router) FindErrors(ctx context.Context, name string, submission models.Submission, problem models.Problem) (errs models.ErrorList, err error) {
	err = r.call(ctx, name, PhaseFindErrors, submission.ID, func(ctx context.Context, evaluator Evaluator) error {
		found, err := evaluator.FindErrors(ctx, submission, problem)
		if err != nil {
			return err
		}
		errs = make(models.ErrorList, len(found))
		for i, e := range found {
			if e.ID == "" {
				e.ID = GenerateErrorID()
			}
			e.Status = models.ErrorStatusActive
			errs[i] = e
		}
		return nil
	})
	return errs, err
}

// Evaluate scores the submission from its current error list.
func (r *Router) Evaluate(ctx context.Context, name string, submission models.Submission, problem models.Problem) (result Result, err error) {
	err = r.call(ctx, name, PhaseEvaluate, submission.ID, func(ctx context.Context, evaluator Evaluator) error {
		res, err := evaluator.Evaluate(ctx, submission, problem)
		if err != nil {
			return err
		}
		res.Score = ClampScore(res.Score)
		result = res
		return nil
	})
	return result, err
}

// ProcessAppeal lets the named evaluator adjudicate a batch of appeals in place.
func (r *Router) ProcessAppeal(ctx context.Context, name string, appeals []Appeal, submission *models.Submission, problem models.Problem) error {
	return r.call(ctx, name, PhaseAppeal, submission.ID, func(ctx context.Context, evaluator Evaluator) error {
		return evaluator.ProcessAppeal(ctx, appeals, submission, problem)
	})
}

// Info returns metadata for the named evaluator, or a stub when it cannot be built.
func (r *Router) Info(name string) Info {
	evaluator, err := r.Get(name)
	if err != nil {
		r.logger.Error().Err(err).Str("evaluator", name).Msg("could not load evaluator info")
		return Info{
			Name:         "unknown",
			Version:      "-",
			Description:  "Failed to load evaluator info.",
			Capabilities: []string{},
		}
	}
	return evaluator.Info()
}

// Infos returns metadata for every configured evaluator, default first.
func (r *Router) Infos() []Info {
	names := r.cfg.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if _, ok := r.registry.Lookup(name); !ok {
			continue
		}
		infos = append(infos, r.Info(name))
	}
	return infos
}

func (r *Router) call(ctx context.Context, name string, phase Phase, submissionID uint, fn func(context.Context, Evaluator) error) (err error) {
	if name == "" {
		name = r.cfg.DefaultEvaluator
	}

	ctx, span := r.tracer.Start(ctx, "evaluator."+string(phase), trace.WithAttributes(
		attribute.String("evaluator.name", name),
		attribute.Int64("submission.id", int64(submissionID)),
	))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = NewError(name, phase, fmt.Errorf("panic: %v", rec))
		}

		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, string(phase)+" failed")
		}
		observability.EvaluatorCalls().WithLabelValues(name, string(phase), outcome).Inc()
		observability.EvaluatorLatency().WithLabelValues(name, string(phase)).Observe(time.Since(start).Seconds())
		span.End()
	}()

	evaluator, err := r.Get(name)
	if err != nil {
		return err
	}

	if err := fn(ctx, evaluator); err != nil {
		return NewError(name, phase, err)
	}
	return nil
}
