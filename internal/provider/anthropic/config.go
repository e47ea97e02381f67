package anthropic

// defaultModel is the model used when none is specified.
// Pinned to a dated release for reproducibility.
const defaultModel = "claude-sonnet-4-20250514"

// Config holds the configuration for the Anthropic provider.
type Config struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	ThinkingBudget int     `yaml:"thinking_budget"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}
