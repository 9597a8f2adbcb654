package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/thanh913/MOOJ/internal/bootstrap"
	"github.com/thanh913/MOOJ/internal/config"
	"github.com/thanh913/MOOJ/internal/database"
	"github.com/thanh913/MOOJ/internal/handler"
	"github.com/thanh913/MOOJ/internal/middleware"
	"github.com/thanh913/MOOJ/internal/queue"
	"github.com/thanh913/MOOJ/internal/repository"
	"github.com/thanh913/MOOJ/internal/router"
	"github.com/thanh913/MOOJ/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := bootstrap.NewLogger(cfg, "api")

	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare database")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()

	redisClient, err := database.ConnectRedis(startupCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis not configured, concurrent appeals are not serialised")
	} else {
		defer redisClient.Close()
	}

	evaluators, err := bootstrap.Evaluators(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load evaluators")
	}

	var publisher service.TaskPublisher
	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-api", logger)
	if err != nil {
		logger.Warn().Err(err).Msg("queue unavailable, submissions will be graded inline")
	} else {
		defer natsConn.Drain()
		js, err := jetstream.New(natsConn)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open jetstream context")
		}
		if _, err := database.EnsureStream(startupCtx, js, cfg.QueueStream, cfg.QueueSubject); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure evaluation stream")
		}
		publisher = queue.NewPublisher(js, cfg.QueueSubject, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	locker := service.NewSubmissionLocker(redisClient, cfg.AppealLockTTL, logger)

	dispatcher := service.NewDispatcher(publisher, bootstrap.EvaluationService(db, evaluators, logger), service.DispatcherConfig{
		Attempts:       cfg.PublishAttempts,
		InitialBackoff: cfg.PublishBackoff,
	}, logger)

	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, dispatcher, locker, validate, logger)
	appealService := service.NewAppealService(submissionRepo, problemRepo, evaluators, locker, validate, logger)
	problemService := service.NewProblemService(problemRepo, validate, logger)
	reaper := service.NewReaper(submissionRepo, cfg.WorkerStuckAfter, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    16 * 1024 * 1024,
	})

	deps := router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, appealService, logger),
		ProblemHandler:    handler.NewProblemHandler(problemService, logger),
		EvaluatorHandler:  handler.NewEvaluatorHandler(evaluators),
		AdminHandler:      handler.NewAdminHandler(reaper, logger),
		HealthChecks:      healthChecks(db, redisClient, natsConn),
		AppealLimiter:     middleware.RateLimit("appeals", cfg.AppealRateLimit, cfg.AppealRateLimitWindow),
	}
	if cfg.AuthEnabled() {
		deps.JWTMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("jwt secret not configured, submission and admin routes are unauthenticated")
	}

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthCheckFunc {
	checks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["queue"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats: " + natsConn.Status().String())
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
