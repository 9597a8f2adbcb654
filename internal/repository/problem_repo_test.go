package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/models"
)

func TestProblemRepositoryListAndGet(t *testing.T) {
	db := setupTestDB(t, &models.Problem{})
	repo := NewProblemRepository(db)
	ctx := context.Background()

	published := models.Problem{Title: "Infinitude of primes", Statement: "Prove there are infinitely many primes.", Difficulty: 2, Topics: []string{"number theory"}, IsPublished: true}
	draft := models.Problem{Title: "Draft", Statement: "TBD", Difficulty: 1}
	require.NoError(t, repo.Create(ctx, &published))
	require.NoError(t, repo.Create(ctx, &draft))

	items, total, err := repo.List(ctx, ProblemFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Infinitude of primes", items[0].Title)

	items, total, err = repo.List(ctx, ProblemFilter{PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	require.Equal(t, "Draft", items[0].Title)

	fetched, err := repo.GetByID(ctx, published.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"number theory"}, []string(fetched.Topics))

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestProblemRepositoryUpsertBatch(t *testing.T) {
	db := setupTestDB(t, &models.Problem{})
	repo := NewProblemRepository(db)
	ctx := context.Background()

	items := []models.Problem{{Title: "Sqrt 2", Statement: "Prove sqrt(2) is irrational.", Difficulty: 1, IsPublished: true}}
	affected, err := repo.UpsertBatch(ctx, items)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	items = []models.Problem{{Title: "Sqrt 2", Statement: "Prove that sqrt(2) is irrational.", Difficulty: 2, IsPublished: true}}
	_, err = repo.UpsertBatch(ctx, items)
	require.NoError(t, err)

	all, total, err := repo.List(ctx, ProblemFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Prove that sqrt(2) is irrational.", all[0].Statement)
	require.Equal(t, 2, all[0].Difficulty)
}
