package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mooj",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of chat completion requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mooj",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of failed chat completion requests",
	}, []string{"model", "operation"})
)

// ErrEmptyResponse is returned when the model produced no usable choice.
var ErrEmptyResponse = errors.New("no choices returned from openai")

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClient implements Completer against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/thanh913/MOOJ/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}

// CompleteJSON sends the request in JSON mode and unmarshals the reply into out.
func (c *OpenAIClient) CompleteJSON(parent context.Context, req JSONRequest, out interface{}) (Usage, error) {
	ctx, span := c.tracer.Start(parent, "openai."+req.Operation, trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("images", len(req.Images)),
	))
	defer span.End()

	fail := func(err error) (Usage, error) {
		aiFailures.WithLabelValues(c.cfg.Model, req.Operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn().Err(err).Str("operation", req.Operation).Msg("chat completion failed")
		return Usage{}, err
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			userMessage(req),
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(c.cfg.Model, req.Operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("openai %s: %w", req.Operation, err))
	}

	if len(resp.Choices) == 0 {
		return fail(ErrEmptyResponse)
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fail(fmt.Errorf("parse %s json: %w", req.Operation, err))
	}

	return Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func userMessage(req JSONRequest) openai.ChatCompletionMessage {
	if len(req.Images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User}
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.User}}
	for _, image := range req.Images {
		if image.Label != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: image.Label})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: image.URL, Detail: openai.ImageURLDetailAuto},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

// stripCodeFence removes a surrounding ```json fence some models emit even in JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
