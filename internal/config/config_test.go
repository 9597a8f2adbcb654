package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MOOJ_DATABASE_URL", "postgres://localhost/mooj")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "MOOJ_EVALUATIONS", cfg.QueueStream)
	require.Equal(t, "mooj.evaluations", cfg.QueueSubject)
	require.Equal(t, 3, cfg.PublishAttempts)
	require.Equal(t, 200*time.Millisecond, cfg.PublishBackoff)
	require.Equal(t, 5*time.Minute, cfg.WorkerTaskTimeout)
	require.Equal(t, 15*time.Minute, cfg.WorkerStuckAfter)
	require.Equal(t, 30*time.Second, cfg.AppealLockTTL)
	require.False(t, cfg.AuthEnabled())
	require.False(t, cfg.EvaluatorAllowFallback)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOOJ_DATABASE_URL", "postgres://localhost/mooj")
	t.Setenv("MOOJ_APP_PORT", ":9090")
	t.Setenv("MOOJ_JWT_SECRET", "secret")
	t.Setenv("MOOJ_EVALUATOR_CONFIG", `{"default_evaluator":"llm"}`)
	t.Setenv("MOOJ_EVALUATOR_ALLOW_FALLBACK", "true")
	t.Setenv("MOOJ_WORKER_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.True(t, cfg.AuthEnabled())
	require.JSONEq(t, `{"default_evaluator":"llm"}`, cfg.EvaluatorConfig)
	require.True(t, cfg.EvaluatorAllowFallback)
	require.Equal(t, 8, cfg.WorkerConcurrency)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("MOOJ_DATABASE_URL", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MOOJ_DATABASE_URL", "postgres://localhost/mooj")
	t.Setenv("MOOJ_WORKER_TASK_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("MOOJ_WORKER_TASK_TIMEOUT", "20m")
	_, err = Load()
	require.ErrorContains(t, err, "stuck_after")
}
