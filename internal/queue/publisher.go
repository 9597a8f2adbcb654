package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Publisher writes evaluation tasks to the JetStream subject.
type Publisher struct {
	js      jetstream.JetStream
	subject string
	logger  zerolog.Logger
}

// NewPublisher constructs a publisher bound to subject.
func NewPublisher(js jetstream.JetStream, subject string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		js:      js,
		subject: subject,
		logger:  logger.With().Str("component", "queue_publisher").Logger(),
	}
}

// PublishEvaluation publishes task and waits for the stream acknowledgement. The message id
// lets JetStream drop duplicates produced by publish retries.
func (p *Publisher) PublishEvaluation(ctx context.Context, task EvaluationTask) error {
	payload, err := task.Encode()
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(ctx, p.subject, payload, jetstream.WithMsgID(fmt.Sprintf("submission-%d", task.SubmissionID)))
	if err != nil {
		return fmt.Errorf("publish evaluation task: %w", err)
	}

	p.logger.Debug().
		Uint("submission_id", task.SubmissionID).
		Str("stream", ack.Stream).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("evaluation task published")
	return nil
}
