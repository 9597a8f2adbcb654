package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/repository"
)

// ProblemService exposes the published problem catalogue and seeding.
type ProblemService interface {
	List(ctx context.Context, req dto.ProblemListRequest) (dto.ProblemListResponse, error)
	Get(ctx context.Context, id uint) (dto.ProblemResponse, error)
	SeedYAML(ctx context.Context, raw []byte) (int64, error)
}

type problemService struct {
	problems  repository.ProblemRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProblemService constructs the catalogue service.
func NewProblemService(problems repository.ProblemRepository, validate *validator.Validate, logger zerolog.Logger) ProblemService {
	return &problemService{
		problems:  problems,
		validator: validate,
		logger:    logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) List(ctx context.Context, req dto.ProblemListRequest) (dto.ProblemListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProblemListResponse{}, err
	}

	page, pageSize := dto.NormalizePage(req.Page, req.PageSize)
	items, total, err := s.problems.List(ctx, repository.ProblemFilter{PublishedOnly: true, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.ProblemListResponse{}, err
	}

	responses := make([]dto.ProblemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewProblemResponse(item))
	}
	return dto.ProblemListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// Get returns a published problem. Drafts are reported as not found.
func (s *problemService) Get(ctx context.Context, id uint) (dto.ProblemResponse, error) {
	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		return dto.ProblemResponse{}, err
	}
	if problem == nil || !problem.IsPublished {
		return dto.ProblemResponse{}, ErrProblemNotFound
	}
	return dto.NewProblemResponse(*problem), nil
}

// SeedYAML upserts the problems of a seed document, keyed by title.
func (s *problemService) SeedYAML(ctx context.Context, raw []byte) (int64, error) {
	var file dto.ProblemSeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	if err := s.validator.Struct(file); err != nil {
		return 0, err
	}

	items := make([]models.Problem, 0, len(file.Problems))
	for _, seed := range file.Problems {
		topics := make([]string, 0, len(seed.Topics))
		for _, topic := range seed.Topics {
			if topic = strings.TrimSpace(strings.ToLower(topic)); topic != "" {
				topics = append(topics, topic)
			}
		}
		difficulty := seed.Difficulty
		if difficulty == 0 {
			difficulty = 1
		}
		items = append(items, models.Problem{
			Title:       strings.TrimSpace(seed.Title),
			Statement:   strings.TrimSpace(seed.Statement),
			Difficulty:  difficulty,
			Topics:      topics,
			IsPublished: seed.IsPublished,
		})
	}

	affected, err := s.problems.UpsertBatch(ctx, items)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("problems seeded")
	return affected, nil
}
