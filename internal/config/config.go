// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the application configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Credentials and endpoints
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	JobSourceID string `json:"job_source_id,omitempty"`
	JobSourceKey string `json:"job_source_key,omitempty"`

	// Pipeline tuning
	TargetScore      float64 `json:"target_score,omitempty" validate:"gte=0,lte=100"`
	MaxIterations    int     `json:"max_iterations,omitempty" validate:"gte=0,lte=10"`
	MaxQuestions     int     `json:"max_questions,omitempty" validate:"gte=0,lte=20"` // per iteration
	SessionIdleMin   int     `json:"session_idle_minutes,omitempty" validate:"gte=0"`
	CompletionBudget int     `json:"completion_budget,omitempty" validate:"gte=0"` // calls per run

	// Matching tuning
	RecommendThreshold float64 `json:"recommend_threshold,omitempty" validate:"gte=0,lte=100"`
	StalenessDays      int     `json:"staleness_days,omitempty" validate:"gte=0"`
	PostingTTLDays     int     `json:"posting_ttl_days,omitempty" validate:"gte=0"`
	Concurrency        int     `json:"concurrency,omitempty" validate:"gte=0,lte=64"`

	Verbose bool `json:"verbose,omitempty"`
}

// Defaults returns the baseline configuration used when neither the config
// file nor CLI flags override a value.
func Defaults() Config {
	return Config{
		TargetScore:        90,
		MaxIterations:      2,
		MaxQuestions:       5,
		SessionIdleMin:     10,
		CompletionBudget:   20,
		RecommendThreshold: 70,
		StalenessDays:      30,
		PostingTTLDays:     45,
		Concurrency:        5,
	}
}

// SessionIdleTimeout returns the session idle timeout as a duration
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMin) * time.Minute
}

// StalenessWindow returns the re-ingestion staleness window as a duration
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.StalenessDays) * 24 * time.Hour
}

// PostingTTL returns the default posting TTL as a duration
func (c *Config) PostingTTL() time.Duration {
	return time.Duration(c.PostingTTLDays) * 24 * time.Hour
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.MaxIterations > 0 && c.TargetScore == 0 {
		return fmt.Errorf("config error: 'target_score' is required when 'max_iterations' is set")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from
// defaults. This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.JobSourceID == "" {
		result.JobSourceID = defaults.JobSourceID
	}
	if result.JobSourceKey == "" {
		result.JobSourceKey = defaults.JobSourceKey
	}
	if result.TargetScore == 0 {
		result.TargetScore = defaults.TargetScore
	}
	if result.MaxIterations == 0 {
		result.MaxIterations = defaults.MaxIterations
	}
	if result.MaxQuestions == 0 {
		result.MaxQuestions = defaults.MaxQuestions
	}
	if result.SessionIdleMin == 0 {
		result.SessionIdleMin = defaults.SessionIdleMin
	}
	if result.CompletionBudget == 0 {
		result.CompletionBudget = defaults.CompletionBudget
	}
	if result.RecommendThreshold == 0 {
		result.RecommendThreshold = defaults.RecommendThreshold
	}
	if result.StalenessDays == 0 {
		result.StalenessDays = defaults.StalenessDays
	}
	if result.PostingTTLDays == 0 {
		result.PostingTTLDays = defaults.PostingTTLDays
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}

	// Bool fields: cannot distinguish unset from false, so CLI flags win
	return result
}
