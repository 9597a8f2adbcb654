package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API, worker and CLI.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string

	// EvaluatorConfig is an inline JSON document; it wins over EvaluatorConfigPath.
	EvaluatorConfig        string
	EvaluatorConfigPath    string
	EvaluatorAllowFallback bool

	OpenAIAPIKey  string
	OpenAIBaseURL string

	QueueStream   string
	QueueSubject  string
	QueueConsumer string

	PublishAttempts int
	PublishBackoff  time.Duration

	WorkerConcurrency  int
	WorkerTaskTimeout  time.Duration
	WorkerStuckAfter   time.Duration
	WorkerReapInterval time.Duration
	// WorkerMetricsPort enables the worker's /metrics listener when set.
	WorkerMetricsPort  string

	AppealLockTTL         time.Duration
	AppealRateLimit       int
	AppealRateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AuthEnabled reports whether JWT protection is configured.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MOOJ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "MOOJ")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("evaluator.allow_fallback", false)
	v.SetDefault("queue.stream", "MOOJ_EVALUATIONS")
	v.SetDefault("queue.subject", "mooj.evaluations")
	v.SetDefault("queue.consumer", "mooj-worker")
	v.SetDefault("queue.publish_attempts", 3)
	v.SetDefault("queue.publish_backoff", "200ms")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.task_timeout", "5m")
	v.SetDefault("worker.stuck_after", "15m")
	v.SetDefault("worker.reap_interval", "1m")
	v.SetDefault("appeal.lock_ttl", "30s")
	v.SetDefault("appeal.rate_limit", 10)
	v.SetDefault("appeal.rate_window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"queue.publish_backoff", "worker.task_timeout", "worker.stuck_after",
		"worker.reap_interval", "appeal.lock_ttl", "appeal.rate_window",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		EvaluatorConfig:        v.GetString("evaluator.config"),
		EvaluatorConfigPath:    v.GetString("evaluator.config_path"),
		EvaluatorAllowFallback: v.GetBool("evaluator.allow_fallback"),
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		QueueStream:            v.GetString("queue.stream"),
		QueueSubject:           v.GetString("queue.subject"),
		QueueConsumer:          v.GetString("queue.consumer"),
		PublishAttempts:        v.GetInt("queue.publish_attempts"),
		PublishBackoff:         durations["queue.publish_backoff"],
		WorkerConcurrency:      v.GetInt("worker.concurrency"),
		WorkerTaskTimeout:      durations["worker.task_timeout"],
		WorkerStuckAfter:       durations["worker.stuck_after"],
		WorkerReapInterval:     durations["worker.reap_interval"],
		WorkerMetricsPort:      v.GetString("worker.metrics_port"),
		AppealLockTTL:          durations["appeal.lock_ttl"],
		AppealRateLimit:        v.GetInt("appeal.rate_limit"),
		AppealRateLimitWindow:  durations["appeal.rate_window"],
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = 3
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 4
	}

	if cfg.WorkerStuckAfter <= cfg.WorkerTaskTimeout {
		return Config{}, fmt.Errorf("worker stuck_after (%s) must exceed task_timeout (%s)", cfg.WorkerStuckAfter, cfg.WorkerTaskTimeout)
	}

	return cfg, nil
}
