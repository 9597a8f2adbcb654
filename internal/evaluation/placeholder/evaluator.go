// Package placeholder provides a deterministic evaluator driven by keywords in the solution
// and the appeal justifications. It exists for development and tests.
package placeholder

import (
	"context"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
)

// Name is the registry name of this evaluator.
const Name = "placeholder"

const version = "1.0.0"

var (
	errorKeyword   = regexp.MustCompile(`(?i)error`)
	correctKeyword = regexp.MustCompile(`(?i)correct`)
)

var criticalError = models.SubmissionError{
	Type:        "critical",
	Location:    "Entire submission",
	Description: "Critical error found in submission. The solution contains explicit errors.",
	Severity:    true,
}

var predefinedErrors = []models.SubmissionError{
	{Type: "logic", Location: "Step 3", Description: "Logical flaw detected in step 3.", Severity: true},
	{Type: "calculation", Location: "Line 5", Description: "Incorrect formula used for integration.", Severity: true},
	{Type: "notation", Location: "Throughout", Description: "Minor notation inconsistency.", Severity: false},
}

// Config mirrors the placeholder settings block. The knobs are reported but the keyword rules
// stay deterministic; MaxErrors caps the generated list when positive.
type Config struct {
	ErrorProbability  float64 `json:"error_probability"`
	MaxErrors         int     `json:"max_errors"`
	AppealSuccessRate float64 `json:"appeal_success_rate"`
}

// Evaluator is the keyword driven evaluator.
type Evaluator struct {
	cfg    Config
	logger zerolog.Logger
}

// New constructs the evaluator.
func New(cfg Config, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		logger: logger.With().Str("evaluator", Name).Logger(),
	}
}

// Factory adapts New to evaluation.Factory.
func Factory(settings map[string]interface{}, logger zerolog.Logger) (evaluation.Evaluator, error) {
	var cfg Config
	if err := evaluation.DecodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, logger), nil
}

// FindErrors reports a critical error plus the predefined ones whenever the solution mentions
// the word "error", and nothing otherwise.
func (e *Evaluator) FindErrors(_ context.Context, submission models.Submission, _ models.Problem) (models.ErrorList, error) {
	if !errorKeyword.MatchString(submission.SolutionText) {
		return models.ErrorList{}, nil
	}

	templates := append([]models.SubmissionError{criticalError}, predefinedErrors...)
	if e.cfg.MaxErrors > 0 && len(templates) > e.cfg.MaxErrors {
		templates = templates[:e.cfg.MaxErrors]
	}

	errs := make(models.ErrorList, 0, len(templates))
	for _, tmpl := range templates {
		tmpl.ID = evaluation.GenerateErrorID()
		tmpl.Status = models.ErrorStatusActive
		errs = append(errs, tmpl)
	}
	return errs, nil
}

// Evaluate scores 0 while any active or rejected error remains and 100 otherwise.
func (e *Evaluator) Evaluate(_ context.Context, submission models.Submission, _ models.Problem) (evaluation.Result, error) {
	outstanding := false
	for _, err := range submission.Errors {
		if err.Status.CountsAgainstScore() {
			outstanding = true
			break
		}
	}

	if outstanding {
		feedback := "Active or rejected errors identified. Please review the feedback below."
		return evaluation.Result{Score: 0, Feedback: &feedback}, nil
	}
	feedback := "No active or rejected errors found."
	return evaluation.Result{Score: 100, Feedback: &feedback}, nil
}

// ProcessAppeal resolves an appealing error when its justification mentions "correct" and
// rejects it otherwise.
func (e *Evaluator) ProcessAppeal(_ context.Context, appeals []evaluation.Appeal, submission *models.Submission, _ models.Problem) error {
	if len(submission.Errors) == 0 {
		e.logger.Warn().Uint("submission_id", submission.ID).Msg("appeals received for submission without errors")
		return nil
	}

	updates := make(map[string]models.ErrorStatus, len(appeals))
	for _, appeal := range appeals {
		current, _, ok := submission.Errors.Find(appeal.ErrorID)
		if !ok {
			e.logger.Warn().Uint("submission_id", submission.ID).Str("error_id", appeal.ErrorID).Msg("appealed error not found")
			continue
		}
		if current.Status != models.ErrorStatusAppealing {
			e.logger.Warn().Uint("submission_id", submission.ID).Str("error_id", appeal.ErrorID).
				Str("status", string(current.Status)).Msg("skipping appeal for error that is not appealing")
			continue
		}

		if correctKeyword.MatchString(appeal.Justification) {
			updates[appeal.ErrorID] = models.ErrorStatusResolved
		} else {
			updates[appeal.ErrorID] = models.ErrorStatusRejected
		}
		e.logger.Info().Uint("submission_id", submission.ID).Str("error_id", appeal.ErrorID).
			Str("decision", string(updates[appeal.ErrorID])).Msg("appeal adjudicated")
	}

	submission.Errors = submission.Errors.WithStatuses(updates)
	return nil
}

// Info describes the evaluator.
func (e *Evaluator) Info() evaluation.Info {
	return evaluation.Info{
		Name:         Name,
		Version:      version,
		Description:  "Deterministic keyword evaluator for development and testing",
		Capabilities: []string{"error_generation", "appeal_processing", "batch_appeal"},
	}
}
