package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/thanh913/MOOJ/internal/dto"
	"github.com/thanh913/MOOJ/internal/repository"
)

const seedDocument = `
problems:
  - title: Irrationality of sqrt(2)
    statement: Prove that sqrt(2) is irrational.
    difficulty: 2
    topics: [Number Theory, " proof by contradiction "]
    is_published: true
  - title: Draft induction exercise
    statement: Prove the sum of the first n odd numbers is n^2.
    is_published: false
`

func TestProblemServiceSeedAndRead(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewProblemService(repository.NewProblemRepository(db), validator.New(), testLogger())
	ctx := context.Background()

	affected, err := svc.SeedYAML(ctx, []byte(seedDocument))
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	list, err := svc.List(ctx, dto.ProblemListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	published := list.Items[0]
	require.Equal(t, "Irrationality of sqrt(2)", published.Title)
	require.Equal(t, []string{"number theory", "proof by contradiction"}, published.Topics)

	got, err := svc.Get(ctx, published.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Difficulty)

	var draftID uint
	require.NoError(t, db.Table("problems").Select("id").Where("title = ?", "Draft induction exercise").Scan(&draftID).Error)
	_, err = svc.Get(ctx, draftID)
	require.ErrorIs(t, err, ErrProblemNotFound)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrProblemNotFound)
}

func TestProblemServiceSeedUpdatesExistingTitles(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewProblemService(repository.NewProblemRepository(db), validator.New(), testLogger())
	ctx := context.Background()

	_, err := svc.SeedYAML(ctx, []byte(seedDocument))
	require.NoError(t, err)

	_, err = svc.SeedYAML(ctx, []byte(`
problems:
  - title: Draft induction exercise
    statement: Prove it by induction on n.
    difficulty: 3
    is_published: true
`))
	require.NoError(t, err)

	list, err := svc.List(ctx, dto.ProblemListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(2), list.Pagination.TotalItems)

	var statement string
	require.NoError(t, db.Table("problems").Select("statement").Where("title = ?", "Draft induction exercise").Scan(&statement).Error)
	require.Equal(t, "Prove it by induction on n.", statement)
}

func TestProblemServiceSeedRejectsInvalidDocuments(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewProblemService(repository.NewProblemRepository(db), validator.New(), testLogger())
	ctx := context.Background()

	_, err := svc.SeedYAML(ctx, []byte("problems: [unterminated"))
	require.Error(t, err)

	_, err = svc.SeedYAML(ctx, []byte("problems:\n  - statement: missing title\n"))
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.SeedYAML(ctx, []byte("problems: []\n"))
	require.ErrorAs(t, err, &validationErrs)
}
