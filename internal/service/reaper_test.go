package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/internal/repository"
)

func TestReaperSweepMovesOnlyStaleProcessingSubmissions(t *testing.T) {
	db := setupServiceDB(t)
	problem := seedProblem(t, db, "Reaper", true)
	submissions := repository.NewSubmissionRepository(db)
	ctx := context.Background()

	stale, err := submissions.Create(ctx, problem.ID, "stale")
	require.NoError(t, err)
	fresh, err := submissions.Create(ctx, problem.ID, "fresh")
	require.NoError(t, err)
	waiting, err := submissions.Create(ctx, problem.ID, "pending")
	require.NoError(t, err)

	for _, id := range []uint{stale.ID, fresh.ID} {
		claimed, err := submissions.ClaimForProcessing(ctx, id)
		require.NoError(t, err)
		require.True(t, claimed)
	}
	require.NoError(t, db.Model(&models.Submission{}).Where("id IN ?", []uint{stale.ID, waiting.ID}).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	reaper := NewReaper(submissions, 10*time.Minute, testLogger())
	count, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.Equal(t, models.SubmissionStatusEvaluationError, loadSubmission(t, db, stale.ID).Status)
	require.Equal(t, models.SubmissionStatusProcessing, loadSubmission(t, db, fresh.ID).Status)
	require.Equal(t, models.SubmissionStatusPending, loadSubmission(t, db, waiting.ID).Status)

	count, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestReaperRunStopsWithContext(t *testing.T) {
	db := setupServiceDB(t)
	reaper := NewReaper(repository.NewSubmissionRepository(db), time.Minute, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, reaper.Run(ctx, 5*time.Millisecond))
}
