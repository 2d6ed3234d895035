package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, ProviderOllama, cfg.EmbedProvider)
	assert.Equal(t, 384, cfg.EmbedDimension)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SURREALDB_NAMESPACE", "other")
	t.Setenv("MEMDEDUP_WORKERS", "8")
	t.Setenv("MEMDEDUP_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "other", cfg.SurrealDBNamespace)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("MEMDEDUP_WORKERS", "not-a-number")
	cfg := Load()
	assert.Equal(t, 4, cfg.Workers)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestLoadRunConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadRunConfig("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDeduplicationConfig(), cfg)
}

func TestLoadRunConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
method_weights:
  exact: 0.5
  semantic: 0.25
  fuzzy: 0.25
similarity_threshold: 0.9
max_group_size: 5
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.MethodWeights[models.MethodExact])
	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
	assert.Equal(t, 5, cfg.MaxGroupSize)
	// Unspecified fields keep their defaults.
	assert.Equal(t, 50, cfg.MaxBatchSize)
}

func TestLoadRunConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
method_weights:
  exact: 0.9
  semantic: 0.9
  fuzzy: 0.9
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err := LoadRunConfig(path)
	require.Error(t, err)

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("hello", "key", "value")

	assert.Contains(t, stderr.String(), "hello")
	assert.Contains(t, file.String(), `"msg":"hello"`)
}
