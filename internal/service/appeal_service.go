package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/observability"
	"github.com/thanh913/MOOJ/internal/repository"
)

// AppealService processes appeal rounds against a submission's errors.
type AppealService interface {
	SubmitAppeals(ctx context.Context, submissionID uint, req dto.AppealBatchRequest) (dto.SubmissionResponse, error)
}

type appealService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	evaluators  EvaluatorRouter
	locker      SubmissionLocker
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAppealService constructs the appeal batch processor.
func NewAppealService(submissions repository.SubmissionRepository, problems repository.ProblemRepository, evaluators EvaluatorRouter, locker SubmissionLocker, validate *validator.Validate, logger zerolog.Logger) AppealService {
	if locker == nil {
		locker = noopLocker{}
	}
	return &appealService{
		submissions: submissions,
		problems:    problems,
		evaluators:  evaluators,
		locker:      locker,
		validator:   validate,
		logger:      logger.With().Str("component", "appeal_service").Logger(),
		tracer:      otel.Tracer("github.com/thanh913/MOOJ/internal/service/appeal"),
	}
}

func (s *appealService) SubmitAppeals(ctx context.Context, submissionID uint, req dto.AppealBatchRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "appeal.submit", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int("appeal.count", len(req.Appeals)),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, err
	}
	for _, item := range req.Appeals {
		if item.ImageJustification == "" {
			continue
		}
		if _, _, err := evaluation.DecodeImage(item.ImageJustification); err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("%w: error %s: %v", ErrInvalidAppealImage, item.ErrorID, err)
		}
	}

	unlock, err := s.locker.Lock(ctx, submissionID)
	if err != nil {
		observability.AppealBatches().WithLabelValues("busy").Inc()
		return dto.SubmissionResponse{}, err
	}
	defer unlock()

	log := s.logger.With().Uint("submission_id", submissionID).Logger()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission == nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	problem, err := s.problems.GetByID(ctx, submission.ProblemID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if problem == nil {
		log.Error().Uint("problem_id", submission.ProblemID).Msg("problem missing for submission under appeal")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: problem %d missing for submission %d", ErrDataIntegrity, submission.ProblemID, submissionID)
	}

	if err := checkAppealable(submission); err != nil {
		observability.AppealBatches().WithLabelValues("rejected").Inc()
		return dto.SubmissionResponse{}, err
	}

	var (
		result    *models.Submission
		noTargets bool
	)
	err = s.submissions.Transaction(ctx, func(tx repository.SubmissionRepository) error {
		attempted, err := tx.IncrementAppealAttempts(ctx, submissionID)
		if err != nil {
			return err
		}
		if attempted == nil {
			// Another request changed the row since it was read.
			current, err := tx.GetByID(ctx, submissionID)
			if err != nil {
				return err
			}
			if current == nil {
				return ErrSubmissionNotFound
			}
			if err := checkAppealable(current); err != nil {
				return err
			}
			return fmt.Errorf("%w: attempt was not recorded", ErrInvalidSubmissionState)
		}

		appeals := filterAppeals(req.Appeals, attempted.Errors, log)
		if len(appeals) == 0 {
			// The attempt stays charged.
			noTargets = true
			return nil
		}

		marks := make(map[string]models.ErrorStatus, len(appeals))
		for _, appeal := range appeals {
			marks[appeal.ErrorID] = models.ErrorStatusAppealing
		}
		marked, err := tx.UpdateErrorsBatch(ctx, submissionID, marks)
		if err != nil {
			return err
		}
		if marked == nil {
			return ErrInvalidSubmissionState
		}

		working := *marked
		working.Errors = marked.Errors.Clone()
		if err := s.evaluators.ProcessAppeal(ctx, "", appeals, &working, *problem); err != nil {
			return err
		}
		working.Errors, err = settleAppealOutcome(marked.Errors, working.Errors, log)
		if err != nil {
			return err
		}

		graded, err := s.evaluators.Evaluate(ctx, "", working, *problem)
		if err != nil {
			return err
		}

		result, err = tx.UpdateAfterAppeal(ctx, submissionID, graded.Score, graded.Feedback, working.Errors)
		if err != nil {
			return err
		}
		if result == nil {
			return ErrInvalidSubmissionState
		}

		final := models.StatusAfterAppeal(result.AppealAttempts, result.Errors)
		if final == models.SubmissionStatusAppealing {
			return nil
		}
		moved, err := tx.TransitionStatus(ctx, submissionID, models.SubmissionStatusAppealing, final)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidSubmissionState
		}
		result.Status = final
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "appeal batch failed")
		if isAppealRejection(err) {
			observability.AppealBatches().WithLabelValues("rejected").Inc()
			return dto.SubmissionResponse{}, err
		}
		observability.AppealBatches().WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("appeal batch rolled back")
		return dto.SubmissionResponse{}, fmt.Errorf("process appeal batch: %w", err)
	}

	if noTargets {
		log.Info().Msg("appeal batch had no valid targets")
		observability.AppealBatches().WithLabelValues("no_valid_targets").Inc()
		return dto.SubmissionResponse{}, ErrNoValidAppeals
	}

	if result.Status != models.SubmissionStatusAppealing {
		recordTransition(models.SubmissionStatusAppealing, result.Status)
	}
	observability.AppealBatches().WithLabelValues("processed").Inc()
	log.Info().
		Int("attempt", result.AppealAttempts).
		Str("status", string(result.Status)).
		Msg("appeal batch processed")
	return dto.NewSubmissionResponse(*result), nil
}

// checkAppealable reports why a submission cannot take another appeal round, if it cannot.
func checkAppealable(submission *models.Submission) error {
	if submission.Status != models.SubmissionStatusAppealing {
		return fmt.Errorf("%w: status is %s", ErrInvalidSubmissionState, submission.Status)
	}
	if !submission.HasAttemptsRemaining() {
		return ErrAppealLimitReached
	}
	return nil
}

func isAppealRejection(err error) bool {
	return errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrInvalidSubmissionState) ||
		errors.Is(err, ErrAppealLimitReached)
}

// filterAppeals keeps the first appeal per error that carries a justification and targets an
// active or rejected error.
func filterAppeals(items []dto.AppealItem, errs models.ErrorList, log zerolog.Logger) []evaluation.Appeal {
	seen := make(map[string]struct{}, len(items))
	appeals := make([]evaluation.Appeal, 0, len(items))

	for _, item := range items {
		appeal := evaluation.Appeal{
			ErrorID:            item.ErrorID,
			Justification:      strings.TrimSpace(item.Justification),
			ImageJustification: item.ImageJustification,
		}
		if !appeal.HasJustification() {
			log.Info().Str("error_id", item.ErrorID).Msg("dropping appeal without justification")
			continue
		}
		if _, dup := seen[item.ErrorID]; dup {
			log.Info().Str("error_id", item.ErrorID).Msg("dropping duplicate appeal")
			continue
		}
		target, _, ok := errs.Find(item.ErrorID)
		if !ok {
			log.Info().Str("error_id", item.ErrorID).Msg("dropping appeal for unknown error")
			continue
		}
		if !target.Status.IsAppealable() {
			log.Info().Str("error_id", item.ErrorID).Str("status", string(target.Status)).Msg("dropping appeal for error that cannot be appealed")
			continue
		}

		seen[item.ErrorID] = struct{}{}
		appeals = append(appeals, appeal)
	}
	return appeals
}

// settleAppealOutcome checks the evaluator only moved appealing errors to resolved or
// rejected. Errors it left appealing are rejected so the round always closes.
func settleAppealOutcome(before, after models.ErrorList, log zerolog.Logger) (models.ErrorList, error) {
	if len(before) != len(after) {
		return nil, fmt.Errorf("%w: evaluator changed the error list length", ErrDataIntegrity)
	}

	settled := after.Clone()
	for i := range settled {
		prev, next := before[i], settled[i]
		if prev.ID != next.ID {
			return nil, fmt.Errorf("%w: evaluator reordered errors", ErrDataIntegrity)
		}
		if next.Status == models.ErrorStatusAppealing {
			log.Warn().Str("error_id", next.ID).Msg("evaluator left error undecided, rejecting")
			settled[i].Status = models.ErrorStatusRejected
			continue
		}
		if prev.Status != next.Status && !prev.Status.CanTransitionTo(next.Status) {
			return nil, fmt.Errorf("%w: error %s moved from %s to %s", ErrDataIntegrity, next.ID, prev.Status, next.Status)
		}
	}
	return settled, nil
}
