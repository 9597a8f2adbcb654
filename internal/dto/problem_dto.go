package dto

import (
	"time"

	"github.com/thanh913/MOOJ/internal/models"
)

// ProblemListRequest describes paging for the problem catalogue.
type ProblemListRequest struct {
	Page     int `query:"page" validate:"omitempty,gte=1"`
	PageSize int `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// ProblemResponse serializes a published problem.
type ProblemResponse struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Statement  string    `json:"statement"`
	Difficulty int       `json:"difficulty"`
	Topics     []string  `json:"topics"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProblemListResponse wraps a page of problems.
type ProblemListResponse struct {
	Items      []ProblemResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewProblemResponse converts a Problem model into a DTO.
func NewProblemResponse(model models.Problem) ProblemResponse {
	topics := []string(model.Topics)
	if topics == nil {
		topics = []string{}
	}
	return ProblemResponse{
		ID:         model.ID,
		Title:      model.Title,
		Statement:  model.Statement,
		Difficulty: model.Difficulty,
		Topics:     topics,
		CreatedAt:  model.CreatedAt,
	}
}

// ProblemSeed is one entry of a YAML seed file.
type ProblemSeed struct {
	Title       string   `yaml:"title" validate:"required,max=255"`
	Statement   string   `yaml:"statement" validate:"required"`
	Difficulty  int      `yaml:"difficulty" validate:"omitempty,gte=1,lte=10"`
	Topics      []string `yaml:"topics"`
	IsPublished bool     `yaml:"is_published"`
}

// ProblemSeedFile is the root document of a seed file.
type ProblemSeedFile struct {
	Problems []ProblemSeed `yaml:"problems" validate:"required,min=1,dive"`
}

// ReapResponse reports a stuck submission sweep.
type ReapResponse struct {
	Reaped int `json:"reaped"`
}
