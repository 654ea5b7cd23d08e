package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"api_key": "test-key",
		"database_url": "postgres://localhost/jobscout",
		"target_score": 85,
		"max_iterations": 3,
		"concurrency": 8,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/jobscout", cfg.DatabaseURL)
	assert.Equal(t, 85.0, cfg.TargetScore)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_TargetScoreOutOfRange(t *testing.T) {
	cfg := &Config{TargetScore: 150}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestValidate_IterationsRequireTarget(t *testing.T) {
	cfg := &Config{MaxIterations: 2}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "target_score")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 90.0, cfg.TargetScore)
	assert.Equal(t, 2, cfg.MaxIterations)
	assert.Equal(t, 5, cfg.MaxQuestions)
	assert.Equal(t, 20, cfg.CompletionBudget)
	assert.Equal(t, 70.0, cfg.RecommendThreshold)
	assert.Equal(t, 5, cfg.Concurrency)
}

func TestMergeWithDefaults_FillsUnsetOnly(t *testing.T) {
	cfg := Config{TargetScore: 80, APIKey: "explicit"}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, 80.0, merged.TargetScore)
	assert.Equal(t, "explicit", merged.APIKey)
	assert.Equal(t, 2, merged.MaxIterations)
	assert.Equal(t, 45, merged.PostingTTLDays)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout())
	assert.Equal(t, 30*24*time.Hour, cfg.StalenessWindow())
	assert.Equal(t, 45*24*time.Hour, cfg.PostingTTL())
}
