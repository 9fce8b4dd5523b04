package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withEnvFile runs Load from a temp working directory holding an empty .env,
// so the test is isolated from any real env file.
func withEnvFile(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), nil, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	withEnvFile(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)

	assert.Equal(t, "eduschedule", cfg.Database.Name)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)

	assert.Equal(t, 5, cfg.Schedule.Days)
	assert.Equal(t, 8, cfg.Schedule.PeriodsPerDay)

	assert.Equal(t, 3, cfg.Solver.MaxWorkers)
	assert.Equal(t, 16, cfg.Solver.QueueSize)
	assert.Equal(t, 300*time.Second, cfg.Solver.TimeBudget)
	assert.Equal(t, 5, cfg.Solver.SolutionLimit)
	assert.Zero(t, cfg.Solver.NodeBudget)
	assert.Equal(t, 24*time.Hour, cfg.Solver.ProgressTTL)

	assert.Equal(t, 10*time.Minute, cfg.Analysis.CacheTTL)

	assert.False(t, cfg.Exports.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
	assert.Equal(t, 1, cfg.Exports.WorkerConcurrency)
	assert.Equal(t, 3, cfg.Exports.WorkerRetries)

	assert.Equal(t, time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 720*time.Hour, cfg.Cleanup.MaxAge)

	assert.False(t, cfg.Swagger.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	withEnvFile(t)

	t.Setenv("PORT", "9090")
	t.Setenv("SOLVER_MAX_WORKERS", "7")
	t.Setenv("SOLVER_TIME_BUDGET", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("ENABLE_EXPORTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 7, cfg.Solver.MaxWorkers)
	assert.Equal(t, 90*time.Second, cfg.Solver.TimeBudget)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Exports.Enabled)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
