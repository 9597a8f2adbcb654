// Package evaluation defines the pluggable evaluator contract and the router that resolves
// evaluator names to cached instances.
package evaluation

import (
	"context"

	"github.com/thanh913/MOOJ/internal/models"
)

// Appeal is a single contestation of one error inside an appeal batch.
type Appeal struct {
	ErrorID            string `json:"error_id"`
	Justification      string `json:"justification"`
	ImageJustification string `json:"image_justification,omitempty"`
}

// HasJustification reports whether the appeal carries any text or image argument.
func (a Appeal) HasJustification() bool {
	return a.Justification != "" || a.ImageJustification != ""
}

// Result is the aggregate grade computed from the current error list.
type Result struct {
	Score    int     `json:"score"`
	Feedback *string `json:"feedback,omitempty"`
}

// Info is static metadata describing an evaluator implementation.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// Evaluator finds errors in a submission, scores it and adjudicates appeals.
//
// FindErrors and Evaluate must not modify the submission they receive. ProcessAppeal is the
// only method with a side effect: it replaces submission.Errors with a copy in which each
// appealed error that was in the appealing status is moved to resolved or rejected.
type Evaluator interface {
	FindErrors(ctx context.Context, submission models.Submission, problem models.Problem) (models.ErrorList, error)
	Evaluate(ctx context.Context, submission models.Submission, problem models.Problem) (Result, error)
	ProcessAppeal(ctx context.Context, appeals []Appeal, submission *models.Submission, problem models.Problem) error
	Info() Info
}

// ClampScore keeps a score inside the 0..100 range.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
