package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/observability"
	"github.com/thanh913/MOOJ/internal/queue"
)

// TaskPublisher hands evaluation tasks to the durable queue.
type TaskPublisher interface {
	PublishEvaluation(ctx context.Context, task queue.EvaluationTask) error
}

// Dispatcher hands a new submission to the asynchronous evaluation path.
type Dispatcher interface {
	// Dispatch publishes the task, retrying transient failures, and grades the submission
	// inline when the queue stays unavailable. It only fails when the submission could not
	// be left in a recorded state.
	Dispatch(ctx context.Context, submission models.Submission) error
}

// DispatcherConfig tunes publish retries.
type DispatcherConfig struct {
	Attempts       int
	InitialBackoff time.Duration
}

type dispatcher struct {
	publisher TaskPublisher
	fallback  EvaluationService
	cfg       DispatcherConfig
	logger    zerolog.Logger
}

// NewDispatcher constructs a dispatcher. publisher may be nil, in which case every submission
// is graded inline. fallback must be built on a database session that is independent of the
// request's session.
func NewDispatcher(publisher TaskPublisher, fallback EvaluationService, cfg DispatcherConfig, logger zerolog.Logger) Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	return &dispatcher{
		publisher: publisher,
		fallback:  fallback,
		cfg:       cfg,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, submission models.Submission) error {
	task := queue.EvaluationTask{
		SubmissionID: submission.ID,
		ProblemID:    submission.ProblemID,
		SolutionText: submission.SolutionText,
	}
	log := d.logger.With().Uint("submission_id", submission.ID).Logger()

	if d.publisher != nil {
		err := d.publish(ctx, task)
		if err == nil {
			observability.Dispatches().WithLabelValues("queued").Inc()
			return nil
		}
		log.Error().Err(err).Int("attempts", d.cfg.Attempts).Msg("queue unavailable, evaluating synchronously")
	}

	// The request may finish before grading does; the fallback must not inherit its cancellation.
	syncCtx := context.WithoutCancel(ctx)
	if err := d.fallback.ProcessSubmission(syncCtx, submission.ID); err != nil {
		log.Error().Err(err).Msg("synchronous evaluation failed")
		observability.Dispatches().WithLabelValues("fallback_failed").Inc()
		if markErr := d.fallback.ForceEvaluationError(syncCtx, submission.ID); markErr != nil {
			return fmt.Errorf("dispatch submission %d: %w", submission.ID, markErr)
		}
		return nil
	}

	observability.Dispatches().WithLabelValues("sync").Inc()
	return nil
}

func (d *dispatcher) publish(ctx context.Context, task queue.EvaluationTask) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		return d.publisher.PublishEvaluation(ctx, task)
	}
	notify := func(err error, wait time.Duration) {
		d.logger.Warn().Err(err).Uint("submission_id", task.SubmissionID).Int("attempt", attempt).Dur("retry_in", wait).Msg("publish failed, retrying")
	}

	retries := uint64(d.cfg.Attempts - 1)
	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
}
