// Package bootstrap holds the wiring shared by the API server, the worker and moojctl.
package bootstrap

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/thanh913/MOOJ/internal/config"
	"github.com/thanh913/MOOJ/internal/database"
	"github.com/thanh913/MOOJ/internal/evaluation"
	"github.com/thanh913/MOOJ/internal/evaluation/builtin"
	"github.com/thanh913/MOOJ/internal/repository"
	"github.com/thanh913/MOOJ/internal/service"
)

// NewLogger returns the process root logger. Development runs get a console writer.
func NewLogger(cfg config.Config, process string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.AppEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Str("app", cfg.AppName).Str("process", process).Logger()
}

// OpenDatabase connects to the configured database and applies migrations.
func OpenDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Evaluators builds the evaluator router from the evaluator configuration.
func Evaluators(cfg config.Config, logger zerolog.Logger) (*evaluation.Router, error) {
	router, err := builtin.NewRouter(cfg.EvaluatorConfig, cfg.EvaluatorConfigPath, cfg.EvaluatorAllowFallback, builtin.Options{
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load evaluators: %w", err)
	}
	return router, nil
}

// EvaluationService builds the grading service on its own database session, so callers that
// hold a request scoped session do not share it with grading.
func EvaluationService(db *gorm.DB, evaluators service.EvaluatorRouter, logger zerolog.Logger) service.EvaluationService {
	session := db.Session(&gorm.Session{NewDB: true})
	return service.NewEvaluationService(
		repository.NewSubmissionRepository(session),
		repository.NewProblemRepository(session),
		evaluators,
		logger,
	)
}
