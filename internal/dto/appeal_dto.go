package dto

// AppealItem contests one error of a submission.
type AppealItem struct {
	ErrorID            string `json:"error_id" validate:"required,max=64"`
	Justification      string `json:"justification" validate:"max=10000"`
	ImageJustification string `json:"image_justification,omitempty"`
}

// AppealBatchRequest is one appeal round.
type AppealBatchRequest struct {
	Appeals []AppealItem `json:"appeals" validate:"required,min=1,max=50,dive"`
}
