// Package llm provides the completion-service client used by the profile
// pipeline and the match scorer, with retry, timeout and per-run call budget
// enforcement layered on top of the provider SDK.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: term extraction, short classification
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: cluster parsing, fit estimation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: summary and prose writing
	TierAdvanced ModelTier = "advanced"
)

// Config holds the model configuration for the application
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model mapping
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier, falling back to the
// standard tier when the requested one is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return ""
}
