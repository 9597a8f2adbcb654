package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvaluator indicates the evaluator name is not registered.
	ErrUnknownEvaluator = errors.New("unknown evaluator")
	// ErrInvalidConfig indicates the evaluator configuration failed validation.
	ErrInvalidConfig = errors.New("invalid evaluator configuration")
)

// Phase names the evaluator operation that failed.
type Phase string

const (
	PhaseFindErrors Phase = "find_errors"
	PhaseEvaluate   Phase = "evaluate"
	PhaseAppeal     Phase = "process_appeal"
)

// Error is returned when an evaluator cannot produce a result.
type Error struct {
	Evaluator string
	Phase     Phase
	Err       error
}

// NewError wraps err as an evaluator failure. Errors that already are *Error are returned unchanged.
func NewError(evaluator string, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Evaluator: evaluator, Phase: phase, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("evaluator %s failed during %s: %v", e.Evaluator, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsEvaluationError reports whether err originated from an evaluator.
func IsEvaluationError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
