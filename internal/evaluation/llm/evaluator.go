// Package llm grades proofs with a chat model. Error detection and appeal adjudication are
// delegated to the model; the score is computed locally from the error list so that it stays
// reproducible.
package llm

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/models"
	"github.com/thanh913/MOOJ/pkg/ai"
)

// Name is the registry name of this evaluator.
const Name = "llm"

const version = "1.0.0"

// Config is the llm settings block.
type Config struct {
	Model              string  `json:"model"`
	Temperature        float32 `json:"temperature"`
	MaxTokens          int     `json:"max_tokens"`
	SignificantPenalty int     `json:"significant_penalty"`
	MinorPenalty       int     `json:"minor_penalty"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.SignificantPenalty == 0 {
		c.SignificantPenalty = 25
	}
	if c.MinorPenalty == 0 {
		c.MinorPenalty = 5
	}
	return c
}

// Evaluator implements evaluation.Evaluator on top of an ai.Completer.
type Evaluator struct {
	cfg      Config
	client   ai.Completer
	sanitize *bluemonday.Policy
	logger   zerolog.Logger
}

// New constructs the evaluator around an existing completer.
func New(cfg Config, client ai.Completer, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg:      cfg.withDefaults(),
		client:   client,
		sanitize: bluemonday.StrictPolicy(),
		logger:   logger.With().Str("evaluator", Name).Logger(),
	}
}

// NewFactory returns a factory that builds an OpenAI backed evaluator per settings block.
func NewFactory(apiKey, baseURL string) evaluation.Factory {
	return func(settings map[string]interface{}, logger zerolog.Logger) (evaluation.Evaluator, error) {
		var cfg Config
		if err := evaluation.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		cfg = cfg.withDefaults()

		client, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Logger:      logger.With().Str("component", "openai").Logger(),
		})
		if err != nil {
			return nil, err
		}
		return New(cfg, client, logger), nil
	}
}

type foundError struct {
	Type        string `json:"type"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Severity    bool   `json:"severity"`
}

type findErrorsResponse struct {
	Errors []foundError `json:"errors"`
}

// FindErrors asks the model for the discrete errors in the proof.
func (e *Evaluator) FindErrors(ctx context.Context, submission models.Submission, problem models.Problem) (models.ErrorList, error) {
	var resp findErrorsResponse
	usage, err := e.client.CompleteJSON(ctx, ai.JSONRequest{
		Operation: "find_errors",
		System:    findErrorsSystemPrompt,
		User:      buildProofPrompt(problem, submission.SolutionText),
	}, &resp)
	if err != nil {
		return nil, err
	}

	errs := make(models.ErrorList, 0, len(resp.Errors))
	for _, found := range resp.Errors {
		description := e.clean(found.Description)
		if description == "" {
			continue
		}
		errType := e.clean(found.Type)
		if errType == "" {
			errType = "logic"
		}
		errs = append(errs, models.SubmissionError{
			ID:          evaluation.GenerateErrorID(),
			Type:        errType,
			Location:    e.clean(found.Location),
			Description: description,
			Severity:    found.Severity,
			Status:      models.ErrorStatusActive,
		})
	}

	e.logger.Info().Uint("submission_id", submission.ID).Int("errors", len(errs)).
		Int("prompt_tokens", usage.PromptTokens).Int("completion_tokens", usage.CompletionTokens).
		Msg("errors identified")
	return errs, nil
}

// Evaluate deducts a fixed penalty for each error still counting against the score.
func (e *Evaluator) Evaluate(_ context.Context, submission models.Submission, _ models.Problem) (evaluation.Result, error) {
	score := 100
	var outstanding []models.SubmissionError
	for _, err := range submission.Errors {
		if !err.Status.CountsAgainstScore() {
			continue
		}
		outstanding = append(outstanding, err)
		if err.Severity {
			score -= e.cfg.SignificantPenalty
		} else {
			score -= e.cfg.MinorPenalty
		}
	}

	feedback := buildFeedback(outstanding)
	return evaluation.Result{Score: evaluation.ClampScore(score), Feedback: &feedback}, nil
}

type appealDecision struct {
	ErrorID  string `json:"error_id"`
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

type appealResponse struct {
	Decisions []appealDecision `json:"decisions"`
}

// ProcessAppeal adjudicates the appealing errors of the batch in one model call. Appeals
// without a usable justification are rejected without consulting the model.
func (e *Evaluator) ProcessAppeal(ctx context.Context, appeals []evaluation.Appeal, submission *models.Submission, problem models.Problem) error {
	updates := make(map[string]models.ErrorStatus, len(appeals))
	var pending []evaluation.Appeal
	var pendingErrors []models.SubmissionError
	var images []ai.Image

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

		if appeal.ImageJustification != "" {
			url, err := evaluation.ImageDataURL(appeal.ImageJustification)
			if err != nil {
				return err
			}
			images = append(images, ai.Image{Label: imageLabel(len(images)+1, appeal.ErrorID), URL: url})
		} else if !evaluation.IsValidJustification(appeal.Justification) {
			updates[appeal.ErrorID] = models.ErrorStatusRejected
			continue
		}

		pending = append(pending, appeal)
		pendingErrors = append(pendingErrors, current)
	}

	if len(pending) > 0 {
		var resp appealResponse
		_, err := e.client.CompleteJSON(ctx, ai.JSONRequest{
			Operation: "process_appeal",
			System:    appealSystemPrompt,
			User:      buildAppealPrompt(problem, submission.SolutionText, pending, pendingErrors),
			Images:    images,
		}, &resp)
		if err != nil {
			return err
		}

		decided := make(map[string]models.ErrorStatus, len(resp.Decisions))
		for _, decision := range resp.Decisions {
			if strings.EqualFold(strings.TrimSpace(decision.Decision), string(models.ErrorStatusResolved)) {
				decided[decision.ErrorID] = models.ErrorStatusResolved
			} else {
				decided[decision.ErrorID] = models.ErrorStatusRejected
			}
		}
		for _, appeal := range pending {
			status, ok := decided[appeal.ErrorID]
			if !ok {
				e.logger.Warn().Uint("submission_id", submission.ID).Str("error_id", appeal.ErrorID).Msg("model returned no decision, rejecting")
				status = models.ErrorStatusRejected
			}
			updates[appeal.ErrorID] = status
		}
	}

	for id, status := range updates {
		e.logger.Info().Uint("submission_id", submission.ID).Str("error_id", id).Str("decision", string(status)).Msg("appeal adjudicated")
	}
	submission.Errors = submission.Errors.WithStatuses(updates)
	return nil
}

// Info describes the evaluator.
func (e *Evaluator) Info() evaluation.Info {
	return evaluation.Info{
		Name:         Name,
		Version:      version,
		Description:  fmt.Sprintf("Chat model proof grader (%s)", e.cfg.Model),
		Capabilities: []string{"error_generation", "appeal_processing", "batch_appeal", "image_justification"},
	}
}

// clean strips markup from model output while keeping mathematical comparison signs readable.
func (e *Evaluator) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(e.sanitize.Sanitize(value)))
}
