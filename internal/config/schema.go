// Package config handles YAML configuration loading, environment variable
// expansion, environment overrides, and validation for braid.
package config

import (
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Persona is the system prompt for the primary model. Either inline
	// text or, when PersonaFile is set, read from that file.
	Persona     string `yaml:"persona" env:"BRAID_PERSONA"`
	PersonaFile string `yaml:"persona_file" env:"BRAID_PERSONA_FILE"`

	Provider  ProviderConfig  `yaml:"provider"`
	Storage   StorageConfig   `yaml:"storage"`
	Context   ContextConfig   `yaml:"context"`
	Relevance RelevanceConfig `yaml:"relevance"`
	Invoker   InvokerConfig   `yaml:"invoker"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Log       LogConfig       `yaml:"log"`
}

// ProviderConfig configures the Anthropic provider. The secondary model
// handles summary generation and model-assisted relevance ranking.
type ProviderConfig struct {
	APIKey         string  `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	Model          string  `yaml:"model" env:"BRAID_MODEL"`
	SecondaryModel string  `yaml:"secondary_model" env:"BRAID_SECONDARY_MODEL"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	ThinkingBudget int     `yaml:"thinking_budget"`
}

// StorageConfig configures durable conversation storage and the vector
// index.
type StorageConfig struct {
	// SQLitePath is the conversation database file.
	SQLitePath string `yaml:"sqlite_path" env:"BRAID_SQLITE_PATH"`

	// IndexPath is the prebuilt passage index file. Empty disables
	// vector relevance.
	IndexPath string `yaml:"index_path" env:"BRAID_INDEX_PATH"`
}

// ContextConfig tunes context assembly and summarization.
type ContextConfig struct {
	RecentWindow    int `yaml:"recent_window"`
	TailWindow      int `yaml:"tail_window"`
	SummaryInterval int `yaml:"summary_interval"`
}

// RelevanceConfig tunes relevance selection.
type RelevanceConfig struct {
	// Strategy is "vector", "model", or "off".
	Strategy        string `yaml:"strategy"`
	K               int    `yaml:"k"`
	MinWindow       int    `yaml:"min_window"`
	CandidateWindow int    `yaml:"candidate_window"`

	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures the embedding service for vector relevance.
type EmbeddingConfig struct {
	APIKey  string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// InvokerConfig tunes the invocation retry layer.
type InvokerConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// LedgerConfig configures Redis usage accounting.
type LedgerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr" env:"BRAID_REDIS_ADDR"`
	Password  string        `yaml:"password" env:"BRAID_REDIS_PASSWORD"`
	DB        int           `yaml:"db"`
	CostPer1K float64       `yaml:"cost_per_1k"`
	Threshold float64       `yaml:"threshold"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
}

// GatewayConfig configures the HTTP surface for serve mode.
type GatewayConfig struct {
	Bind            string        `yaml:"bind" env:"BRAID_BIND"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SweepSchedule is a cron expression for the maintenance sweep.
	// Empty disables it.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level" env:"BRAID_LOG_LEVEL"`
}

// defaults fills zero values with sensible defaults. Component packages
// apply their own defaults too; these cover what the CLI reads directly.
func (c *Config) defaults() {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "braid.db"
	}
	if c.Relevance.Strategy == "" {
		c.Relevance.Strategy = "vector"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
