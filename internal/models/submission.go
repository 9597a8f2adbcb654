package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxAppealAttempts bounds the number of appeal rounds a submission may go through.
const MaxAppealAttempts = 5

// SubmissionStatus enumerates the lifecycle states of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending         SubmissionStatus = "pending"
	SubmissionStatusProcessing      SubmissionStatus = "processing"
	SubmissionStatusAppealing       SubmissionStatus = "appealing"
	SubmissionStatusCompleted       SubmissionStatus = "completed"
	SubmissionStatusEvaluationError SubmissionStatus = "evaluation_error"

	// submissionStatusLegacyFailed is the retired name of SubmissionStatusEvaluationError.
	submissionStatusLegacyFailed SubmissionStatus = "failed"
)

// IsTerminal reports whether no further transition may leave this status.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusCompleted || s == SubmissionStatusEvaluationError
}

// Valid reports whether s is one of the known statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusProcessing, SubmissionStatusAppealing,
		SubmissionStatusCompleted, SubmissionStatusEvaluationError:
		return true
	}
	return false
}

// Submission is one solution attempt for a problem together with its evaluation state.
type Submission struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	ProblemID      uint             `gorm:"not null;index" json:"problem_id"`
	SolutionText   string           `gorm:"type:text;not null" json:"solution_text"`
	Status         SubmissionStatus `gorm:"size:32;not null;index;default:pending" json:"status"`
	Score          *int             `json:"score"`
	Feedback       *string          `gorm:"type:text" json:"feedback"`
	Errors         ErrorList        `json:"errors"`
	AppealAttempts int              `gorm:"not null;default:0" json:"appeal_attempts"`
	SubmittedAt    time.Time        `gorm:"autoCreateTime;not null" json:"submitted_at"`
	UpdatedAt      time.Time        `gorm:"index" json:"updated_at"`
}

// AfterFind maps retired status values onto their current names.
func (s *Submission) AfterFind(_ *gorm.DB) error {
	if s.Status == submissionStatusLegacyFailed {
		s.Status = SubmissionStatusEvaluationError
	}
	return nil
}

// HasAttemptsRemaining reports whether another appeal round is allowed.
func (s Submission) HasAttemptsRemaining() bool {
	return s.AppealAttempts < MaxAppealAttempts
}

// StatusAfterInitialEvaluation picks the status a freshly graded submission moves to.
func StatusAfterInitialEvaluation(errors ErrorList) SubmissionStatus {
	if errors.HasSignificant() {
		return SubmissionStatusAppealing
	}
	return SubmissionStatusCompleted
}

// StatusAfterAppeal picks the status once an appeal round has been fully processed.
func StatusAfterAppeal(attempts int, errors ErrorList) SubmissionStatus {
	if attempts >= MaxAppealAttempts || !errors.HasAppealable() {
		return SubmissionStatusCompleted
	}
	return SubmissionStatusAppealing
}
