package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thanh913/MOOJ/internal/observability"
)

// Message is the subset of a JetStream message the consumer needs.
type Message interface {
	Data() []byte
	Ack() error
	Term() error
}

// MessageSource yields messages until stopped.
type MessageSource interface {
	Next() (Message, error)
	Stop()
}

// Handler processes one task. A nil return means the task reached a recorded outcome,
// including handled evaluation failures.
type Handler func(ctx context.Context, task EvaluationTask) error

// ConsumerConfig tunes message handling.
type ConsumerConfig struct {
	Concurrency int
	TaskTimeout time.Duration
}

// Consumer pulls evaluation tasks and runs the handler for each of them.
type Consumer struct {
	source  MessageSource
	handler Handler
	cfg     ConsumerConfig
	logger  zerolog.Logger
}

// NewConsumer constructs a consumer over an arbitrary message source.
func NewConsumer(source MessageSource, handler Handler, cfg ConsumerConfig, logger zerolog.Logger) *Consumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}
	return &Consumer{
		source:  source,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "queue_consumer").Logger(),
	}
}

// Run handles messages until ctx is cancelled, then waits for in-flight handlers.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.source.Stop()
		case <-stopped:
		}
	}()
	defer close(stopped)

	c.logger.Info().Int("concurrency", c.cfg.Concurrency).Dur("task_timeout", c.cfg.TaskTimeout).Msg("consumer started")
	for {
		msg, err := c.source.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				break
			}
			c.logger.Warn().Err(err).Msg("failed to fetch message")
			continue
		}

		g.Go(func() error {
			c.Handle(gctx, msg)
			return nil
		})
	}

	err := g.Wait()
	c.logger.Info().Msg("consumer stopped")
	return err
}

// Handle runs the handler for one message and acknowledges it.
//
// Malformed messages are acked and dropped. A handler that finishes in time is acked on
// success and terminated on error or panic, so poison messages are never redelivered. A handler
// that outlives the task timeout is acked and left running in the background.
func (c *Consumer) Handle(ctx context.Context, msg Message) {
	task, err := DecodeTask(msg.Data())
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed message")
		c.settle(msg.Ack, "dropped", 0)
		return
	}

	log := c.logger.With().Uint("submission_id", task.SubmissionID).Logger()
	taskCtx := context.WithoutCancel(ctx)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic: %v", rec)
			}
		}()
		done <- c.handler(taskCtx, task)
	}()

	timer := time.NewTimer(c.cfg.TaskTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("evaluation task failed unexpectedly, terminating message")
			c.settle(msg.Term, "terminated", task.SubmissionID)
			return
		}
		c.settle(msg.Ack, "acked", task.SubmissionID)
	case <-timer.C:
		log.Warn().Dur("timeout", c.cfg.TaskTimeout).Msg("evaluation task exceeded timeout, acknowledging and leaving it orphaned")
		c.settle(msg.Ack, "orphaned", task.SubmissionID)
		go func() {
			if err := <-done; err != nil {
				log.Error().Err(err).Msg("orphaned evaluation task failed")
				return
			}
			log.Info().Msg("orphaned evaluation task finished")
		}()
	}
}

func (c *Consumer) settle(fn func() error, outcome string, submissionID uint) {
	if err := fn(); err != nil {
		c.logger.Error().Err(err).Uint("submission_id", submissionID).Str("outcome", outcome).Msg("failed to settle message")
	}
	observability.WorkerTasks().WithLabelValues(outcome).Inc()
}

type jetStreamSource struct {
	iter jetstream.MessagesContext
}

func (s jetStreamSource) Next() (Message, error) {
	msg, err := s.iter.Next()
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s jetStreamSource) Stop() {
	s.iter.Stop()
}

// NewJetStreamSource creates or updates the durable consumer and returns its message iterator.
// AckWait exceeds the task timeout so that a slow task is never redelivered before it settles.
func NewJetStreamSource(ctx context.Context, stream jetstream.Stream, durable, subject string, taskTimeout time.Duration) (MessageSource, error) {
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       taskTimeout + time.Minute,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", durable, err)
	}

	iter, err := consumer.Messages()
	if err != nil {
		return nil, fmt.Errorf("open message iterator: %w", err)
	}
	return jetStreamSource{iter: iter}, nil
}
