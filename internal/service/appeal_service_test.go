package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/repository"
)

const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

func singleError() models.ErrorList {
	return models.ErrorList{
		{ID: "err-1", Type: "logic", Location: "Step 2", Description: "Unjustified step.", Severity: true, Status: models.ErrorStatusActive},
	}
}

func twoErrors() models.ErrorList {
	return models.ErrorList{
		{ID: "err-1", Type: "logic", Description: "Unjustified step.", Severity: true, Status: models.ErrorStatusActive},
		{ID: "err-2", Type: "notation", Description: "Inconsistent notation.", Severity: false, Status: models.ErrorStatusActive},
	}
}

func newAppealFixture(t *testing.T, router EvaluatorRouter, locker SubmissionLocker) (AppealService, *gorm.DB, models.Problem) {
	t.Helper()
	db := setupServiceDB(t)
	problem := seedProblem(t, db, "Infinitely many primes", true)
	svc := NewAppealService(
		repository.NewSubmissionRepository(db),
		repository.NewProblemRepository(db),
		router,
		locker,
		validator.New(),
		testLogger(),
	)
	return svc, db, problem
}

func appealBatch(items ...dto.AppealItem) dto.AppealBatchRequest {
	return dto.AppealBatchRequest{Appeals: items}
}

func TestSubmitAppealsResolvesLastErrorAndCompletes(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	resp, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{
		ErrorID:       "err-1",
		Justification: "this step is correct",
	}))
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusCompleted), resp.Status)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.SubmissionStatusCompleted, stored.Status)
	require.Equal(t, 1, stored.AppealAttempts)
	require.Equal(t, models.ErrorStatusResolved, stored.Errors[0].Status)
	require.NotNil(t, stored.Score)
	require.Equal(t, 100, *stored.Score)
}

func TestSubmitAppealsRejectedErrorKeepsSubmissionAppealing(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	resp, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{
		ErrorID:       "err-1",
		Justification: "I disagree",
	}))
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusAppealing), resp.Status)
	require.Equal(t, models.MaxAppealAttempts-1, resp.AppealsLeft)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.ErrorStatusRejected, stored.Errors[0].Status)
	require.Equal(t, 1, stored.AppealAttempts)
	require.Equal(t, 0, *stored.Score)
}

func TestSubmitAppealsCompletesAfterFinalAttempt(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())
	ctx := context.Background()

	previous := 0
	for attempt := 1; attempt <= models.MaxAppealAttempts; attempt++ {
		resp, err := svc.SubmitAppeals(ctx, sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "I disagree"}))
		require.NoError(t, err)

		stored := loadSubmission(t, db, sub.ID)
		require.Equal(t, attempt, stored.AppealAttempts)
		require.GreaterOrEqual(t, stored.AppealAttempts, previous)
		previous = stored.AppealAttempts

		if attempt < models.MaxAppealAttempts {
			require.Equal(t, string(models.SubmissionStatusAppealing), resp.Status)
		} else {
			require.Equal(t, string(models.SubmissionStatusCompleted), resp.Status)
			require.Equal(t, models.ErrorStatusRejected, stored.Errors[0].Status)
		}
	}

	_, err := svc.SubmitAppeals(ctx, sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "this is correct"}))
	require.ErrorIs(t, err, ErrInvalidSubmissionState)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.MaxAppealAttempts, stored.AppealAttempts)
	require.Equal(t, models.SubmissionStatusCompleted, stored.Status)
}

func TestSubmitAppealsOnCompletedSubmissionChangesNothing(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", sub.ID).
		Update("status", models.SubmissionStatusCompleted).Error)
	before := loadSubmission(t, db, sub.ID)

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrInvalidSubmissionState)

	after := loadSubmission(t, db, sub.ID)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, before.AppealAttempts, after.AppealAttempts)
	require.Equal(t, before.Errors, after.Errors)
	require.Equal(t, *before.Score, *after.Score)
}

func TestSubmitAppealsUnknownSubmission(t *testing.T) {
	svc, _, _ := newAppealFixture(t, newPlaceholderRouter(t), nil)

	_, err := svc.SubmitAppeals(context.Background(), 77, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmitAppealsMissingProblemIsIntegrityError(t *testing.T) {
	svc, db, _ := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, 555, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrDataIntegrity)
}

func TestSubmitAppealsAttemptLimit(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", sub.ID).
		Update("appeal_attempts", models.MaxAppealAttempts).Error)

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrAppealLimitReached)
	require.Equal(t, models.MaxAppealAttempts, loadSubmission(t, db, sub.ID).AppealAttempts)
}

func TestSubmitAppealsWithNoValidTargetsStillChargesAttempt(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(
		dto.AppealItem{ErrorID: "missing", Justification: "correct"},
		dto.AppealItem{ErrorID: "err-1", Justification: "   "},
	))
	require.ErrorIs(t, err, ErrNoValidAppeals)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, 1, stored.AppealAttempts)
	require.Equal(t, models.SubmissionStatusAppealing, stored.Status)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[0].Status)
}

func TestSubmitAppealsKeepsFirstDuplicateAndSkipsUntargetedErrors(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, twoErrors())

	resp, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(
		dto.AppealItem{ErrorID: "err-1", Justification: "the step is correct"},
		dto.AppealItem{ErrorID: "err-1", Justification: "I disagree"},
	))
	require.NoError(t, err)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.ErrorStatusResolved, stored.Errors[0].Status)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[1].Status)
	// err-2 is still active, so another round is possible.
	require.Equal(t, string(models.SubmissionStatusAppealing), resp.Status)
}

func TestSubmitAppealsRollsBackWhenEvaluatorFails(t *testing.T) {
	router := &stubRouter{EvaluatorRouter: newPlaceholderRouter(t), appealErr: errors.New("model offline")}
	svc, db, problem := newAppealFixture(t, router, nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoValidAppeals))

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, 0, stored.AppealAttempts)
	require.Equal(t, models.SubmissionStatusAppealing, stored.Status)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[0].Status)
}

func TestSubmitAppealsRejectsIllegalEvaluatorOutcome(t *testing.T) {
	router := &stubRouter{
		EvaluatorRouter: newPlaceholderRouter(t),
		appealFn: func(_ []evaluation.Appeal, submission *models.Submission) {
			submission.Errors = submission.Errors.WithStatuses(map[string]models.ErrorStatus{"err-2": models.ErrorStatusResolved})
		},
	}
	svc, db, problem := newAppealFixture(t, router, nil)
	sub := seedGraded(t, db, problem.ID, twoErrors())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrDataIntegrity)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, 0, stored.AppealAttempts)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[1].Status)
}

func TestSubmitAppealsInvalidImageChangesNothing(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{
		ErrorID:            "err-1",
		ImageJustification: "bm90IGFuIGltYWdl",
	}))
	require.ErrorIs(t, err, ErrInvalidAppealImage)
	require.Equal(t, 0, loadSubmission(t, db, sub.ID).AppealAttempts)
}

func TestSubmitAppealsAcceptsImageOnlyJustification(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{
		ErrorID:            "err-1",
		ImageJustification: pngBase64,
	}))
	require.NoError(t, err)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, 1, stored.AppealAttempts)
	require.Equal(t, models.ErrorStatusRejected, stored.Errors[0].Status)
}

func TestSubmitAppealsValidatesBatch(t *testing.T) {
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), nil)
	sub := seedGraded(t, db, problem.ID, singleError())

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, dto.AppealBatchRequest{})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestSubmitAppealsBusySubmission(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	locker := NewSubmissionLocker(client, 0, testLogger())
	svc, db, problem := newAppealFixture(t, newPlaceholderRouter(t), locker)
	sub := seedGraded(t, db, problem.ID, singleError())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, sub.ID)
	require.NoError(t, err)

	_, err = svc.SubmitAppeals(ctx, sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.ErrorIs(t, err, ErrSubmissionBusy)
	require.Equal(t, 0, loadSubmission(t, db, sub.ID).AppealAttempts)

	unlock()
	_, err = svc.SubmitAppeals(ctx, sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "correct"}))
	require.NoError(t, err)
	require.False(t, server.Exists(lockKey(sub.ID)))
}

func TestSettleAppealOutcome(t *testing.T) {
	before := models.ErrorList{
		{ID: "a", Status: models.ErrorStatusAppealing},
		{ID: "b", Status: models.ErrorStatusAppealing},
		{ID: "c", Status: models.ErrorStatusActive},
	}

	settled, err := settleAppealOutcome(before, before.WithStatuses(map[string]models.ErrorStatus{
		"a": models.ErrorStatusResolved,
	}), testLogger())
	require.NoError(t, err)
	require.Equal(t, models.ErrorStatusResolved, settled[0].Status)
	require.Equal(t, models.ErrorStatusRejected, settled[1].Status)
	require.Equal(t, models.ErrorStatusActive, settled[2].Status)

	_, err = settleAppealOutcome(before, before[:2], testLogger())
	require.ErrorIs(t, err, ErrDataIntegrity)

	_, err = settleAppealOutcome(before, models.ErrorList{before[1], before[0], before[2]}, testLogger())
	require.ErrorIs(t, err, ErrDataIntegrity)

	_, err = settleAppealOutcome(before, before.WithStatuses(map[string]models.ErrorStatus{
		"c": models.ErrorStatusResolved,
	}), testLogger())
	require.ErrorIs(t, err, ErrDataIntegrity)
}

func newInterleavedAppealFixture(t *testing.T, afterGet func(db *gorm.DB, sub models.Submission)) (AppealService, *gorm.DB, models.Submission) {
	t.Helper()
	db := setupServiceDB(t)
	problem := seedProblem(t, db, "Infinitely many primes", true)
	sub := seedGraded(t, db, problem.ID, singleError())

	submissions := &interleavingRepo{
		SubmissionRepository: repository.NewSubmissionRepository(db),
		afterGet:             func() { afterGet(db, sub) },
	}
	svc := NewAppealService(submissions, repository.NewProblemRepository(db), newPlaceholderRouter(t), nil, validator.New(), testLogger())
	return svc, db, sub
}

func TestSubmitAppealsDoesNotExceedLimitWhenAnotherRoundLandsFirst(t *testing.T) {
	svc, db, sub := newInterleavedAppealFixture(t, func(db *gorm.DB, sub models.Submission) {
		require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", sub.ID).
			UpdateColumn("appeal_attempts", models.MaxAppealAttempts).Error)
	})
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", sub.ID).
		UpdateColumn("appeal_attempts", models.MaxAppealAttempts-1).Error)

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "this is correct"}))
	require.ErrorIs(t, err, ErrAppealLimitReached)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.MaxAppealAttempts, stored.AppealAttempts)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[0].Status)
}

func TestSubmitAppealsDoesNotReopenAcceptedSubmission(t *testing.T) {
	svc, db, sub := newInterleavedAppealFixture(t, func(db *gorm.DB, sub models.Submission) {
		moved, err := repository.NewSubmissionRepository(db).TransitionStatus(context.Background(), sub.ID,
			models.SubmissionStatusAppealing, models.SubmissionStatusCompleted)
		require.NoError(t, err)
		require.True(t, moved)
	})

	_, err := svc.SubmitAppeals(context.Background(), sub.ID, appealBatch(dto.AppealItem{ErrorID: "err-1", Justification: "I disagree"}))
	require.ErrorIs(t, err, ErrInvalidSubmissionState)

	stored := loadSubmission(t, db, sub.ID)
	require.Equal(t, models.SubmissionStatusCompleted, stored.Status)
	require.Zero(t, stored.AppealAttempts)
	require.Equal(t, models.ErrorStatusActive, stored.Errors[0].Status)
}
