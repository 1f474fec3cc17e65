package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "dayjournal"
redis_host = "localhost"
redis_port = "6379"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
ai_endpoint = "http://localhost:9911"
autosave_debounce_millis = 1000
saved_status_display_millis = 2000
error_status_display_millis = 3000
default_daily_protein_goal = 150

[production]
host = "0.0.0.0"
port = 9000
log_level = "debug"
logs_path = "/var/log/dayjournal/service.log"
sentry_enabled = true
postgres_host = "dayjournal-db"
postgres_port = "5432"
postgres_db_name = "dayjournal"
redis_host = "dayjournal-redis"
redis_port = "6379"
prometheus_metrics_host = "0.0.0.0"
prometheus_metrics_port = "2112"
ai_endpoint = "https://estimator.dayjournal.app"
default_daily_protein_goal = 150
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, "dayjournal", cfg.PostgresDBName)
	assert.Equal(t, 1000, cfg.AutosaveDebounceMillis)
	assert.Equal(t, float64(150), cfg.DefaultDailyProteinGoal)
	assert.False(t, cfg.SentryEnabled)

	cfg, err = Load("prod", path)
	require.NoError(t, err)
	assert.Equal(t, "dayjournal-db", cfg.PostgresHost)
	assert.True(t, cfg.SentryEnabled)
	assert.Equal(t, "/var/log/dayjournal/service.log", cfg.LogsPath)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)

	_, err := Load("staging", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("development", "/nonexistent/config.toml")
	require.Error(t, err)
}
