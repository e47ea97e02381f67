// Package relevance selects the prior messages (or externally indexed
// knowledge passages) most pertinent to the current query. Two strategies
// implement the same interface: deterministic vector similarity (primary)
// and model-assisted ranking (optional, fail-open).
package relevance

import (
	"context"
	"errors"

	"github.com/braid-ai/braid/internal/provider"
)

// ErrBadReply indicates the model-assisted strategy returned something
// other than a JSON array of indices. Callers degrade to an empty result.
var ErrBadReply = errors.New("relevance: malformed ranking reply")

// Candidate is one entry from the relevance window: its position in the
// window, its role, and its content. Ephemeral — never persisted.
type Candidate struct {
	Index   int
	Role    provider.Role
	Content string
}

// Selector ranks candidates by relevance to a query and returns the
// selected subset. Implementations share two rules: a window smaller than
// the configured minimum is returned whole (too little data for ranking to
// add value), and failure degrades to an empty result rather than aborting
// the caller's turn.
type Selector interface {
	Select(ctx context.Context, query string, window []Candidate) ([]Candidate, error)
}

// Config holds the shared tuning knobs for relevance selection.
type Config struct {
	// K is the number of candidates to return. Default 3.
	K int

	// MinWindow is the window size below which selection is skipped and
	// the whole window returned. Default 5.
	MinWindow int

	// CandidateWindow bounds how many trailing candidates the
	// model-assisted strategy enumerates. Default 20.
	CandidateWindow int
}

// withDefaults returns a copy of cfg with zero-valued fields replaced.
func (cfg Config) withDefaults() Config {
	if cfg.K == 0 {
		cfg.K = 3
	}
	if cfg.MinWindow == 0 {
		cfg.MinWindow = 5
	}
	if cfg.CandidateWindow == 0 {
		cfg.CandidateWindow = 20
	}
	return cfg
}

// WindowFromMessages builds the candidate window from stored messages.
func WindowFromMessages(contents []provider.Message) []Candidate {
	window := make([]Candidate, len(contents))
	for i, m := range contents {
		window[i] = Candidate{Index: i, Role: m.Role, Content: m.Content}
	}
	return window
}
