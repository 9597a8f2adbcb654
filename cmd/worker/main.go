package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thanh913/MOOJ/internal/bootstrap"
	"github.com/thanh913/MOOJ/internal/config"
	"github.com/thanh913/MOOJ/internal/database"
	"github.com/thanh913/MOOJ/internal/observability"
	"github.com/thanh913/MOOJ/internal/queue"
	"github.com/thanh913/MOOJ/internal/repository"
	"github.com/thanh913/MOOJ/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := bootstrap.NewLogger(cfg, "worker")

	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare database")
	}

	evaluators, err := bootstrap.Evaluators(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load evaluators")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-worker", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to queue")
	}
	defer natsConn.Drain()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := jetstream.New(natsConn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open jetstream context")
	}
	stream, err := database.EnsureStream(ctx, js, cfg.QueueStream, cfg.QueueSubject)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure evaluation stream")
	}
	source, err := queue.NewJetStreamSource(ctx, stream, cfg.QueueConsumer, cfg.QueueSubject, cfg.WorkerTaskTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to attach consumer")
	}

	evaluations := bootstrap.EvaluationService(db, evaluators, logger)
	consumer := queue.NewConsumer(source, func(ctx context.Context, task queue.EvaluationTask) error {
		return evaluations.ProcessSubmission(ctx, task.SubmissionID)
	}, queue.ConsumerConfig{
		Concurrency: cfg.WorkerConcurrency,
		TaskTimeout: cfg.WorkerTaskTimeout,
	}, logger)

	reaper := service.NewReaper(repository.NewSubmissionRepository(db), cfg.WorkerStuckAfter, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return reaper.Run(gctx, cfg.WorkerReapInterval)
	})

	if cfg.WorkerMetricsPort != "" {
		metrics := fiber.New(fiber.Config{DisableStartupMessage: true})
		metrics.Get("/metrics", observability.MetricsHandler())
		g.Go(func() error {
			return metrics.Listen(":" + cfg.WorkerMetricsPort)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metrics.ShutdownWithContext(shutdownCtx)
		})
	}

	logger.Info().Str("stream", cfg.QueueStream).Str("consumer", cfg.QueueConsumer).Msg("worker started")
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker stopped")
}
