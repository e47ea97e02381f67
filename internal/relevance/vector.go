package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/braid-ai/braid/internal/embedding"
	"github.com/braid-ai/braid/internal/provider"
	"github.com/braid-ai/braid/internal/vecindex"
)

// VectorSelector ranks by squared-L2 distance between the query embedding
// and a prebuilt passage index. Deterministic given identical embeddings
// and index contents. A dimension mismatch or embedding failure degrades to
// an empty result — the conversation continues without boosted context.
type VectorSelector struct {
	embedder embedding.Embedder
	index    *vecindex.Flat
	texts    map[string]string
	config   Config
	logger   *slog.Logger

	// onFallback is invoked when selection degrades to an empty result,
	// with a short reason label. Used for metrics; may be nil.
	onFallback func(reason string)
}

// Interface guard.
var _ Selector = (*VectorSelector)(nil)

// VectorOption configures optional VectorSelector behavior.
type VectorOption func(*VectorSelector)

// WithFallbackHook registers a callback fired whenever selection fails open.
func WithFallbackHook(fn func(reason string)) VectorOption {
	return func(s *VectorSelector) { s.onFallback = fn }
}

// NewVectorSelector creates a selector over a prebuilt index. texts maps
// index identifiers to their passage content.
func NewVectorSelector(embedder embedding.Embedder, index *vecindex.Flat, texts map[string]string, cfg Config, logger *slog.Logger, opts ...VectorOption) *VectorSelector {
	s := &VectorSelector{
		embedder: embedder,
		index:    index,
		texts:    texts,
		config:   cfg.withDefaults(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select embeds the query and returns the K nearest indexed passages as
// candidates, ascending by distance. The window is returned whole when it
// is below the minimum threshold.
func (s *VectorSelector) Select(ctx context.Context, query string, window []Candidate) ([]Candidate, error) {
	if len(window) < s.config.MinWindow {
		return window, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.failOpen("embed", err)
		return nil, nil
	}

	hits, err := s.index.Search(vec, s.config.K)
	if err != nil {
		// Dimension mismatch is a validation condition, not a crash:
		// short-circuit with an empty result.
		if errors.Is(err, vecindex.ErrDimensionMismatch) || errors.Is(err, vecindex.ErrEmptyIndex) {
			s.failOpen("search", err)
			return nil, nil
		}
		return nil, fmt.Errorf("relevance: vector search: %w", err)
	}

	selected := make([]Candidate, 0, len(hits))
	for i, hit := range hits {
		text, ok := s.texts[hit.ID]
		if !ok {
			continue
		}
		selected = append(selected, Candidate{
			Index:   i,
			Role:    provider.RoleAssistant,
			Content: text,
		})
	}
	return selected, nil
}

func (s *VectorSelector) failOpen(stage string, err error) {
	if s.logger != nil {
		s.logger.Warn("relevance selection degraded to empty result",
			"strategy", "vector",
			"stage", stage,
			"error", err,
		)
	}
	if s.onFallback != nil {
		s.onFallback(stage)
	}
}
