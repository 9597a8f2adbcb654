package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/evaluation/builtin"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Problem{}, &models.Submission{}))
	return db
}

func seedProblem(t *testing.T, db *gorm.DB, title string, published bool) models.Problem {
	t.Helper()
	problem := models.Problem{
		Title:       title,
		Statement:   "Prove that the square root of two is irrational.",
		Difficulty:  2,
		IsPublished: published,
	}
	require.NoError(t, db.Create(&problem).Error)
	return problem
}

func newPlaceholderRouter(t *testing.T) *evaluation.Router {
	t.Helper()
	router, err := builtin.NewFallbackRouter(testLogger())
	require.NoError(t, err)
	return router
}

// seedGraded stores a submission that has already been through initial evaluation with errs.
func seedGraded(t *testing.T, db *gorm.DB, problemID uint, errs models.ErrorList) models.Submission {
	t.Helper()
	repo := repository.NewSubmissionRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, problemID, "a proof with an error in it")
	require.NoError(t, err)
	claimed, err := repo.ClaimForProcessing(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	graded, err := repo.UpdateAfterInitialEvaluation(ctx, created.ID, errs, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, graded)
	return *graded
}

func loadSubmission(t *testing.T, db *gorm.DB, id uint) models.Submission {
	t.Helper()
	sub, err := repository.NewSubmissionRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return *sub
}

// stubRouter delegates to the embedded router unless a failure is configured.
type stubRouter struct {
	EvaluatorRouter
	beforeFind func()
	findErr    error
	evalErr    error
	appealErr  error
	appealFn   func(appeals []evaluation.Appeal, submission *models.Submission)
}

func (s *stubRouter) FindErrors(ctx context.Context, name string, submission models.Submission, problem models.Problem) (models.ErrorList, error) {
	if s.beforeFind != nil {
		s.beforeFind()
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.EvaluatorRouter.FindErrors(ctx, name, submission, problem)
}

func (s *stubRouter) Evaluate(ctx context.Context, name string, submission models.Submission, problem models.Problem) (evaluation.Result, error) {
	if s.evalErr != nil {
		return evaluation.Result{}, s.evalErr
	}
	return s.EvaluatorRouter.Evaluate(ctx, name, submission, problem)
}

func (s *stubRouter) ProcessAppeal(ctx context.Context, name string, appeals []evaluation.Appeal, submission *models.Submission, problem models.Problem) error {
	if s.appealErr != nil {
		return s.appealErr
	}
	if s.appealFn != nil {
		s.appealFn(appeals, submission)
		return nil
	}
	return s.EvaluatorRouter.ProcessAppeal(ctx, name, appeals, submission, problem)
}

// interleavingRepo runs afterGet once, right after the first GetByID outside a transaction,
// to stand in for a concurrent request landing between a read and the following write.
type interleavingRepo struct {
	repository.SubmissionRepository
	afterGet func()
	fired    bool
}

func (r *interleavingRepo) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	sub, err := r.SubmissionRepository.GetByID(ctx, id)
	if !r.fired && r.afterGet != nil {
		r.fired = true
		r.afterGet()
	}
	return sub, err
}
