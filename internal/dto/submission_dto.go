package dto

import (
	"time"

	"github.com/thanh913/MOOJ/internal/models"
)

// SubmissionCreateRequest is the payload for a new proof submission.
type SubmissionCreateRequest struct {
	ProblemID    uint   `json:"problem_id" validate:"required,gt=0"`
	SolutionText string `json:"solution_text" validate:"required,min=1,max=200000"`
}

// SubmissionListRequest describes query string filters for listing submissions.
type SubmissionListRequest struct {
	ProblemID *uint   `query:"problem_id" validate:"omitempty,gt=0"`
	Status    *string `query:"status" validate:"omitempty,oneof=pending processing appealing completed evaluation_error"`
	Page      int     `query:"page" validate:"omitempty,gte=1"`
	PageSize  int     `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// SubmissionErrorResponse serializes one error of a submission.
type SubmissionErrorResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description"`
	Severity    bool   `json:"severity"`
	Status      string `json:"status"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                      `json:"id"`
	ProblemID      uint                      `json:"problem_id"`
	SolutionText   string                    `json:"solution_text"`
	Status         string                    `json:"status"`
	Score          *int                      `json:"score"`
	Feedback       *string                   `json:"feedback"`
	Errors         []SubmissionErrorResponse `json:"errors"`
	AppealAttempts int                       `json:"appeal_attempts"`
	AppealsLeft    int                       `json:"appeals_left"`
	SubmittedAt    time.Time                 `json:"submitted_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// SubmissionListResponse wraps a page of submissions.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	errs := make([]SubmissionErrorResponse, 0, len(model.Errors))
	for _, e := range model.Errors {
		errs = append(errs, SubmissionErrorResponse{
			ID:          e.ID,
			Type:        e.Type,
			Location:    e.Location,
			Description: e.Description,
			Severity:    e.Severity,
			Status:      string(e.Status),
		})
	}

	left := models.MaxAppealAttempts - model.AppealAttempts
	if left < 0 {
		left = 0
	}

	return SubmissionResponse{
		ID:             model.ID,
		ProblemID:      model.ProblemID,
		SolutionText:   model.SolutionText,
		Status:         string(model.Status),
		Score:          model.Score,
		Feedback:       model.Feedback,
		Errors:         errs,
		AppealAttempts: model.AppealAttempts,
		AppealsLeft:    left,
		SubmittedAt:    model.SubmittedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
