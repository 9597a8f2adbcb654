package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thanh913/MOOJ/internal/models"
)

// ProblemFilter narrows problem listings.
type ProblemFilter struct {
	PublishedOnly bool
	Page          int
	PageSize      int
}

// ProblemRepository exposes read access to the problem catalogue plus seeding.
type ProblemRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Problem, error)
	List(ctx context.Context, filter ProblemFilter) ([]models.Problem, int64, error)
	Create(ctx context.Context, problem *models.Problem) error
	UpsertBatch(ctx context.Context, problems []models.Problem) (int64, error)
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository constructs the repository implementation.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (*models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &problem, nil
}

func (r *problemRepository) List(ctx context.Context, filter ProblemFilter) ([]models.Problem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Problem{})
	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var problems []models.Problem
	if err := query.Order("difficulty ASC, id ASC").Find(&problems).Error; err != nil {
		return nil, 0, err
	}
	return problems, total, nil
}

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem) error {
	return r.db.WithContext(ctx).Create(problem).Error
}

// UpsertBatch inserts problems keyed by title, refreshing the content of existing ones.
func (r *problemRepository) UpsertBatch(ctx context.Context, problems []models.Problem) (int64, error) {
	if len(problems) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{"statement", "difficulty", "topics", "is_published", "updated_at"}),
	})

	result := tx.Create(&problems)
	return result.RowsAffected, result.Error
}
