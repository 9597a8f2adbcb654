package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thanh913/MOOJ/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	ProblemID *uint
	Status    *models.SubmissionStatus
	Page      int
	PageSize  int
}

// SubmissionRepository defines data operations for submissions. Lookups and updates return a
// nil submission with a nil error when the row does not exist, and status-bound updates do the
// same when the row is not in the status they require.
type SubmissionRepository interface {
	Create(ctx context.Context, problemID uint, solutionText string) (*models.Submission, error)
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error)
	UpdateStatus(ctx context.Context, id uint, status models.SubmissionStatus) (*models.Submission, error)
	TransitionStatus(ctx context.Context, id uint, from, to models.SubmissionStatus) (bool, error)
	ClaimForProcessing(ctx context.Context, id uint) (bool, error)
	UpdateAfterInitialEvaluation(ctx context.Context, id uint, errs models.ErrorList, score int, feedback *string) (*models.Submission, error)
	IncrementAppealAttempts(ctx context.Context, id uint) (*models.Submission, error)
	UpdateErrorsBatch(ctx context.Context, id uint, updates map[string]models.ErrorStatus) (*models.Submission, error)
	UpdateAfterAppeal(ctx context.Context, id uint, score int, feedback *string, errs models.ErrorList) (*models.Submission, error)
	ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Submission, error)
	Transaction(ctx context.Context, fn func(repo SubmissionRepository) error) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, problemID uint, solutionText string) (*models.Submission, error) {
	submission := &models.Submission{
		ProblemID:    problemID,
		SolutionText: solutionText,
		Status:       models.SubmissionStatusPending,
		Errors:       models.ErrorList{},
	}
	if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
		return nil, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.ProblemID != nil {
		query = query.Where("problem_id = ?", *filter.ProblemID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
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

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC, id DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id uint, status models.SubmissionStatus) (*models.Submission, error) {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

// TransitionStatus moves the row from one status to another only if it is still in from.
func (r *submissionRepository) TransitionStatus(ctx context.Context, id uint, from, to models.SubmissionStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimForProcessing moves a pending submission to processing. It reports false when another
// consumer already claimed the row or the row is past pending.
func (r *submissionRepository) ClaimForProcessing(ctx context.Context, id uint) (bool, error) {
	return r.TransitionStatus(ctx, id, models.SubmissionStatusPending, models.SubmissionStatusProcessing)
}

// UpdateAfterInitialEvaluation stores the first grading and derives the resulting status from
// the error list. The write only applies while the row is still processing, so a grading that
// finishes after the reaper gave up returns nil and leaves the row untouched.
func (r *submissionRepository) UpdateAfterInitialEvaluation(ctx context.Context, id uint, errs models.ErrorList, score int, feedback *string) (*models.Submission, error) {
	if errs == nil {
		errs = models.ErrorList{}
	}
	return r.update(ctx, id, map[string]interface{}{
		"errors":   errs,
		"score":    score,
		"feedback": feedback,
		"status":   models.StatusAfterInitialEvaluation(errs),
	}, inStatus(models.SubmissionStatusProcessing))
}

// IncrementAppealAttempts charges one appeal round. It returns nil unless the submission is
// appealing with attempts left.
func (r *submissionRepository) IncrementAppealAttempts(ctx context.Context, id uint) (*models.Submission, error) {
	return r.update(ctx, id, map[string]interface{}{
		"appeal_attempts": gorm.Expr("appeal_attempts + ?", 1),
	}, inStatus(models.SubmissionStatusAppealing), func(db *gorm.DB) *gorm.DB {
		return db.Where("appeal_attempts < ?", models.MaxAppealAttempts)
	})
}

// UpdateErrorsBatch rewrites the error list of an appealing submission with the given
// per-error statuses applied.
func (r *submissionRepository) UpdateErrorsBatch(ctx context.Context, id uint, updates map[string]models.ErrorStatus) (*models.Submission, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	return r.update(ctx, id, map[string]interface{}{
		"errors": current.Errors.WithStatuses(updates),
	}, inStatus(models.SubmissionStatusAppealing))
}

// UpdateAfterAppeal stores the regraded score and errors of an appealing submission.
func (r *submissionRepository) UpdateAfterAppeal(ctx context.Context, id uint, score int, feedback *string, errs models.ErrorList) (*models.Submission, error) {
	return r.update(ctx, id, map[string]interface{}{
		"score":    score,
		"feedback": feedback,
		"errors":   errs.Clone(),
	}, inStatus(models.SubmissionStatusAppealing))
}

// ListStuck returns submissions that have sat in processing since before updatedBefore.
func (r *submissionRepository) ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.SubmissionStatusProcessing, updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// Transaction runs fn against a repository bound to a single database transaction.
func (r *submissionRepository) Transaction(ctx context.Context, fn func(repo SubmissionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&submissionRepository{db: tx})
	})
}

func inStatus(status models.SubmissionStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
}

func (r *submissionRepository) update(ctx context.Context, id uint, values map[string]interface{}, conds ...func(*gorm.DB) *gorm.DB) (*models.Submission, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).Where("id = ?", id).Scopes(conds...).Updates(values)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}
