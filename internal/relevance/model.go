package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/braid-ai/braid/internal/provider"
)

// rankingPrompt asks a secondary model call to pick the most relevant
// past messages and answer with nothing but a JSON array of indices.
const rankingPrompt = `Given this current user question: %q

Review these past conversation messages and identify the %d MOST relevant messages that would help answer the current question. Consider:
- Messages discussing similar topics or concerns
- Messages that provide important context about the user's situation
- Messages that show patterns in the user's thinking

Past messages:
%s

Return ONLY a JSON array of message indices like [2, 5, 8]. If none are particularly relevant, return [].`

// rankingMaxTokens bounds the secondary call; an index array is tiny.
const rankingMaxTokens = 100

// ModelSelector delegates ranking to a secondary model call that returns
// candidate indices as JSON. Inherently unreliable, so it fails open: any
// call error or malformed reply yields an empty result, reported but never
// fatal to the turn.
type ModelSelector struct {
	provider provider.Provider
	config   Config
	logger   *slog.Logger

	// onFallback is invoked when ranking degrades to an empty result.
	onFallback func(reason string)
}

// Interface guard.
var _ Selector = (*ModelSelector)(nil)

// ModelOption configures optional ModelSelector behavior.
type ModelOption func(*ModelSelector)

// WithModelFallbackHook registers a callback fired whenever ranking fails open.
func WithModelFallbackHook(fn func(reason string)) ModelOption {
	return func(s *ModelSelector) { s.onFallback = fn }
}

// NewModelSelector creates a model-assisted selector. The provider is
// typically a faster, cheaper model than the primary conversational one.
func NewModelSelector(p provider.Provider, cfg Config, logger *slog.Logger, opts ...ModelOption) *ModelSelector {
	s := &ModelSelector{
		provider: p,
		config:   cfg.withDefaults(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select enumerates the trailing candidate window, asks the model for the
// K most relevant indices, and returns the matching candidates in their
// original chronological order. Out-of-range indices are discarded, never
// substituted.
func (s *ModelSelector) Select(ctx context.Context, query string, window []Candidate) ([]Candidate, error) {
	if len(window) < s.config.MinWindow {
		return window, nil
	}

	// Bound the enumeration to the most recent candidates.
	offset := 0
	if len(window) > s.config.CandidateWindow {
		offset = len(window) - s.config.CandidateWindow
	}
	bounded := window[offset:]

	var b strings.Builder
	for i, c := range bounded {
		fmt.Fprintf(&b, "[%d] %s: %s\n\n", i, c.Role, c.Content)
	}

	zero := 0.0
	resp, err := s.provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{
			Role:    provider.RoleUser,
			Content: fmt.Sprintf(rankingPrompt, query, s.config.K, b.String()),
		}},
		MaxTokens:   rankingMaxTokens,
		Temperature: &zero,
	})
	if err != nil {
		s.failOpen("call", err)
		return nil, nil
	}

	indices, err := parseIndices(resp.Content)
	if err != nil {
		s.failOpen("parse", err)
		return nil, nil
	}

	// Keep original chronological order and discard out-of-range indices.
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(bounded) {
			seen[idx] = true
		}
	}

	var selected []Candidate
	for i, c := range bounded {
		if seen[i] {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

// parseIndices parses the reply as a strict JSON array of integers.
func parseIndices(reply string) ([]int, error) {
	var indices []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &indices); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadReply, err)
	}
	return indices, nil
}

func (s *ModelSelector) failOpen(stage string, err error) {
	if s.logger != nil {
		s.logger.Warn("relevance selection degraded to empty result",
			"strategy", "model",
			"stage", stage,
			"error", err,
		)
	}
	if s.onFallback != nil {
		s.onFallback(stage)
	}
}
