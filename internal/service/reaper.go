package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/observability"
	"github.com/thanh913/MOOJ/internal/repository"
)

const reapBatchSize = 100

// Reaper moves submissions stuck in processing to evaluation_error.
type Reaper interface {
	Sweep(ctx context.Context) (int, error)
	Run(ctx context.Context, interval time.Duration) error
}

type reaper struct {
	submissions repository.SubmissionRepository
	stuckAfter  time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewReaper constructs a reaper that considers a processing submission stuck once it has not
// been updated for stuckAfter.
func NewReaper(submissions repository.SubmissionRepository, stuckAfter time.Duration, logger zerolog.Logger) Reaper {
	return &reaper{
		submissions: submissions,
		stuckAfter:  stuckAfter,
		now:         time.Now,
		logger:      logger.With().Str("component", "reaper").Logger(),
	}
}

func (r *reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.stuckAfter)
	reaped := 0

	for {
		stuck, err := r.submissions.ListStuck(ctx, cutoff, reapBatchSize)
		if err != nil {
			return reaped, err
		}

		moved := 0
		for _, submission := range stuck {
			ok, err := r.submissions.TransitionStatus(ctx, submission.ID, models.SubmissionStatusProcessing, models.SubmissionStatusEvaluationError)
			if err != nil {
				return reaped, err
			}
			if !ok {
				continue
			}
			moved++
			recordTransition(models.SubmissionStatusProcessing, models.SubmissionStatusEvaluationError)
			observability.ReapedSubmissions().Inc()
			r.logger.Warn().
				Uint("submission_id", submission.ID).
				Time("last_update", submission.UpdatedAt).
				Msg("stuck submission moved to evaluation_error")
		}
		reaped += moved

		if len(stuck) < reapBatchSize || moved == 0 {
			return reaped, nil
		}
	}
}

func (r *reaper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			count, err := r.Sweep(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("reaper sweep failed")
				continue
			}
			if count > 0 {
				r.logger.Info().Int("reaped", count).Msg("reaper sweep finished")
			}
		}
	}
}
