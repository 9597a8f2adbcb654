package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/repository"
)

// SubmissionService exposes submission workflows to handlers.
type SubmissionService interface {
	Create(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error)
	AcceptScore(ctx context.Context, id uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	dispatcher  Dispatcher
	locker      SubmissionLocker
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewSubmissionService builds the submission workflow service.
func NewSubmissionService(submissions repository.SubmissionRepository, problems repository.ProblemRepository, dispatcher Dispatcher, locker SubmissionLocker, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	if locker == nil {
		locker = noopLocker{}
	}
	return &submissionService{
		submissions: submissions,
		problems:    problems,
		dispatcher:  dispatcher,
		locker:      locker,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/thanh913/MOOJ/internal/service/submission"),
	}
}

func (s *submissionService) Create(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.create", trace.WithAttributes(
		attribute.Int64("problem.id", int64(req.ProblemID)),
	))
	defer span.End()

	req.SolutionText = strings.TrimSpace(req.SolutionText)
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, err
	}

	problem, err := s.problems.GetByID(ctx, req.ProblemID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if problem == nil {
		return dto.SubmissionResponse{}, ErrProblemNotFound
	}
	if !problem.IsPublished {
		return dto.SubmissionResponse{}, ErrProblemUnpublished
	}

	submission, err := s.submissions.Create(ctx, req.ProblemID, req.SolutionText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.SubmissionResponse{}, err
	}
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)))

	if err := s.dispatcher.Dispatch(ctx, *submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return dto.SubmissionResponse{}, err
	}

	// The synchronous fallback may already have graded the submission.
	current, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if current == nil {
		current = submission
	}

	s.logger.Info().Uint("submission_id", current.ID).Uint("problem_id", current.ProblemID).Str("status", string(current.Status)).Msg("submission created")
	return dto.NewSubmissionResponse(*current), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission == nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}
	return dto.NewSubmissionResponse(*submission), nil
}

func (s *submissionService) List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionListResponse{}, err
	}

	page, pageSize := dto.NormalizePage(req.Page, req.PageSize)
	filter := repository.SubmissionFilter{ProblemID: req.ProblemID, Page: page, PageSize: pageSize}
	if req.Status != nil {
		status := models.SubmissionStatus(*req.Status)
		filter.Status = &status
	}

	items, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{
		Items:      dto.NewSubmissionResponseSlice(items),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *submissionService) AcceptScore(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.accept_score", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
	))
	defer span.End()

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	defer unlock()

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission == nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}
	if submission.Status != models.SubmissionStatusAppealing {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: status is %s", ErrInvalidSubmissionState, submission.Status)
	}

	moved, err := s.submissions.TransitionStatus(ctx, id, models.SubmissionStatusAppealing, models.SubmissionStatusCompleted)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if !moved {
		return dto.SubmissionResponse{}, ErrInvalidSubmissionState
	}
	recordTransition(models.SubmissionStatusAppealing, models.SubmissionStatusCompleted)

	updated, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if updated == nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	s.logger.Info().Uint("submission_id", id).Msg("score accepted")
	return dto.NewSubmissionResponse(*updated), nil
}
