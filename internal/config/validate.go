package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate checks the configuration for structural problems. It returns
// every problem found, joined, so operators fix one pass instead of one
// field at a time.
func (c *Config) Validate() error {
	var errs []error

	if c.Persona == "" {
		errs = append(errs, errors.New("persona (or persona_file) is required"))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key (or ANTHROPIC_API_KEY) is required"))
	}

	switch c.Relevance.Strategy {
	case "vector":
		if c.Storage.IndexPath != "" && c.Relevance.Embedding.APIKey == "" {
			errs = append(errs, errors.New("relevance.embedding.api_key is required for vector relevance over an index"))
		}
	case "model", "off":
	default:
		errs = append(errs, fmt.Errorf("relevance.strategy must be vector, model, or off (got %q)", c.Relevance.Strategy))
	}

	if c.Gateway.Bind != "" {
		if _, err := net.ResolveTCPAddr("tcp", c.Gateway.Bind); err != nil {
			errs = append(errs, fmt.Errorf("gateway.bind is not a valid address: %q", c.Gateway.Bind))
		}
	}

	if c.Ledger.Enabled {
		if c.Ledger.CostPer1K < 0 {
			errs = append(errs, errors.New("ledger.cost_per_1k must not be negative"))
		}
		if c.Ledger.Threshold < 0 {
			errs = append(errs, errors.New("ledger.threshold must not be negative"))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error (got %q)", c.Log.Level))
	}

	return errors.Join(errs...)
}
