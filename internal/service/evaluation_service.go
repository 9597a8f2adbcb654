package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/observability"
	"github.com/thanh913/MOOJ/internal/repository"
)

// EvaluatorRouter is the part of evaluation.Router the services depend on.
type EvaluatorRouter interface {
	FindErrors(ctx context.Context, name string, submission models.Submission, problem models.Problem) (models.ErrorList, error)
	Evaluate(ctx context.Context, name string, submission models.Submission, problem models.Problem) (evaluation.Result, error)
	ProcessAppeal(ctx context.Context, name string, appeals []evaluation.Appeal, submission *models.Submission, problem models.Problem) error
}

// EvaluationService runs the initial grading of a submission.
type EvaluationService interface {
	// ProcessSubmission grades a pending submission. Evaluator failures and a missing problem
	// are handled by moving the submission to evaluation_error and return nil; only
	// infrastructure failures are returned.
	ProcessSubmission(ctx context.Context, submissionID uint) error
	// ForceEvaluationError moves a pending or processing submission to evaluation_error.
	ForceEvaluationError(ctx context.Context, submissionID uint) error
}

type evaluationService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	evaluators  EvaluatorRouter
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEvaluationService constructs the grading state machine.
func NewEvaluationService(submissions repository.SubmissionRepository, problems repository.ProblemRepository, evaluators EvaluatorRouter, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		submissions: submissions,
		problems:    problems,
		evaluators:  evaluators,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/thanh913/MOOJ/internal/service/evaluation"),
	}
}

func (s *evaluationService) ProcessSubmission(ctx context.Context, submissionID uint) error {
	ctx, span := s.tracer.Start(ctx, "submission.process", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	log := s.logger.With().Uint("submission_id", submissionID).Logger()

	claimed, err := s.submissions.ClaimForProcessing(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return fmt.Errorf("claim submission %d: %w", submissionID, err)
	}
	if !claimed {
		current, err := s.submissions.GetByID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("load submission %d: %w", submissionID, err)
		}
		if current == nil {
			log.Warn().Msg("submission not found, skipping evaluation")
			return nil
		}
		log.Info().Str("status", string(current.Status)).Msg("submission already past pending, skipping duplicate evaluation")
		return nil
	}
	recordTransition(models.SubmissionStatusPending, models.SubmissionStatusProcessing)

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return s.failInfrastructure(ctx, span, submissionID, fmt.Errorf("reload claimed submission %d: %w", submissionID, err))
	}
	if submission == nil {
		log.Warn().Msg("claimed submission vanished")
		return nil
	}

	problem, err := s.problems.GetByID(ctx, submission.ProblemID)
	if err != nil {
		return s.failInfrastructure(ctx, span, submissionID, fmt.Errorf("load problem %d: %w", submission.ProblemID, err))
	}
	if problem == nil {
		log.Error().Uint("problem_id", submission.ProblemID).Msg("problem missing for submission")
		span.SetStatus(codes.Error, "problem missing")
		return s.markEvaluationError(ctx, submissionID)
	}

	errs, err := s.evaluators.FindErrors(ctx, "", *submission, *problem)
	if err != nil {
		return s.failEvaluation(ctx, span, submissionID, err)
	}

	graded := *submission
	graded.Errors = errs
	result, err := s.evaluators.Evaluate(ctx, "", graded, *problem)
	if err != nil {
		return s.failEvaluation(ctx, span, submissionID, err)
	}

	updated, err := s.submissions.UpdateAfterInitialEvaluation(ctx, submissionID, errs, result.Score, result.Feedback)
	if err != nil {
		return s.failInfrastructure(ctx, span, submissionID, fmt.Errorf("persist evaluation: %w", err))
	}
	if updated == nil {
		current, err := s.submissions.GetByID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("reload submission %d: %w", submissionID, err)
		}
		if current == nil {
			log.Warn().Msg("submission vanished during evaluation")
			return nil
		}
		span.SetAttributes(attribute.String("submission.status", string(current.Status)))
		log.Warn().Str("status", string(current.Status)).Msg("submission reaped while grading, discarding evaluation")
		return nil
	}

	recordTransition(models.SubmissionStatusProcessing, updated.Status)
	span.SetAttributes(
		attribute.String("submission.status", string(updated.Status)),
		attribute.Int("submission.errors", len(errs)),
	)
	log.Info().
		Str("status", string(updated.Status)).
		Int("score", result.Score).
		Int("errors", len(errs)).
		Msg("submission evaluated")
	return nil
}

func (s *evaluationService) ForceEvaluationError(ctx context.Context, submissionID uint) error {
	return s.markEvaluationError(ctx, submissionID)
}

func (s *evaluationService) failEvaluation(ctx context.Context, span trace.Span, submissionID uint, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "evaluator failed")

	event := s.logger.Error().Err(err).Uint("submission_id", submissionID)
	var evalErr *evaluation.Error
	if errors.As(err, &evalErr) {
		event = event.Str("evaluator", evalErr.Evaluator).Str("phase", string(evalErr.Phase))
	}
	event.Msg("evaluation failed")

	return s.markEvaluationError(ctx, submissionID)
}

// failInfrastructure attempts to leave the submission in evaluation_error and still reports
// the original failure to the caller.
func (s *evaluationService) failInfrastructure(ctx context.Context, span trace.Span, submissionID uint, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "infrastructure failure")
	if markErr := s.markEvaluationError(ctx, submissionID); markErr != nil {
		s.logger.Error().Err(markErr).Uint("submission_id", submissionID).Msg("could not mark submission as evaluation_error")
	}
	return err
}

func (s *evaluationService) markEvaluationError(ctx context.Context, submissionID uint) error {
	for _, from := range []models.SubmissionStatus{models.SubmissionStatusProcessing, models.SubmissionStatusPending} {
		moved, err := s.submissions.TransitionStatus(ctx, submissionID, from, models.SubmissionStatusEvaluationError)
		if err != nil {
			return fmt.Errorf("mark submission %d as evaluation_error: %w", submissionID, err)
		}
		if moved {
			recordTransition(from, models.SubmissionStatusEvaluationError)
			s.logger.Warn().Uint("submission_id", submissionID).Str("from", string(from)).Msg("submission moved to evaluation_error")
			return nil
		}
	}
	return nil
}

func recordTransition(from, to models.SubmissionStatus) {
	observability.SubmissionTransitions().WithLabelValues(string(from), string(to)).Inc()
}
