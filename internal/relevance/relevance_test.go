package relevance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/braid-ai/braid/internal/provider"
	"github.com/braid-ai/braid/internal/provider/providertest"
	"github.com/braid-ai/braid/internal/vecindex"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// funcEmbedder adapts a function to embedding.Embedder.
type funcEmbedder func(ctx context.Context, text string) ([]float32, error)

func (f funcEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func makeWindow(n int) []Candidate {
	window := make([]Candidate, n)
	for i := range window {
		role := provider.RoleUser
		if i%2 == 1 {
			role = provider.RoleAssistant
		}
		window[i] = Candidate{Index: i, Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return window
}

func TestVectorSelectorSmallWindowPassthrough(t *testing.T) {
	t.Parallel()

	embedder := funcEmbedder(func(context.Context, string) ([]float32, error) {
		t.Fatal("embedder should not be called for a small window")
		return nil, nil
	})
	idx := vecindex.NewFlat()
	s := NewVectorSelector(embedder, idx, nil, Config{}, discardLogger())

	window := makeWindow(4)
	got, err := s.Select(context.Background(), "query", window)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected whole window back, got %d candidates", len(got))
	}
}

func TestVectorSelectorNearest(t *testing.T) {
	t.Parallel()

	idx := vecindex.NewFlat()
	if err := idx.Build(
		[]string{"p0", "p1", "p2", "p3"},
		[][]float32{{0, 0}, {1, 0}, {5, 5}, {0.5, 0}},
	); err != nil {
		t.Fatalf("Build: %v", err)
	}
	texts := map[string]string{
		"p0": "passage zero",
		"p1": "passage one",
		"p2": "passage two",
		"p3": "passage three",
	}
	embedder := funcEmbedder(func(context.Context, string) ([]float32, error) {
		return []float32{0, 0}, nil
	})
	s := NewVectorSelector(embedder, idx, texts, Config{K: 2}, discardLogger())

	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Content != "passage zero" || got[1].Content != "passage three" {
		t.Errorf("wrong passages selected: %q, %q", got[0].Content, got[1].Content)
	}
	for _, c := range got {
		if c.Role != provider.RoleAssistant {
			t.Errorf("indexed passage role = %q, want assistant", c.Role)
		}
	}
}

func TestVectorSelectorEmbedFailureFailsOpen(t *testing.T) {
	t.Parallel()

	embedder := funcEmbedder(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	})
	var reason string
	s := NewVectorSelector(embedder, vecindex.NewFlat(), nil, Config{}, discardLogger(),
		WithFallbackHook(func(r string) { reason = r }))

	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select should fail open, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(got))
	}
	if reason != "embed" {
		t.Errorf("fallback reason = %q, want %q", reason, "embed")
	}
}

func TestVectorSelectorDimensionMismatchFailsOpen(t *testing.T) {
	t.Parallel()

	idx := vecindex.NewFlat()
	if err := idx.Build([]string{"p0"}, [][]float32{{0, 0, 0}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	embedder := funcEmbedder(func(context.Context, string) ([]float32, error) {
		return []float32{1, 2}, nil
	})
	var reason string
	s := NewVectorSelector(embedder, idx, nil, Config{}, discardLogger(),
		WithFallbackHook(func(r string) { reason = r }))

	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select should fail open, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(got))
	}
	if reason != "search" {
		t.Errorf("fallback reason = %q, want %q", reason, "search")
	}
}

func TestModelSelectorSmallWindowPassthrough(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.Request) (provider.Response, error) {
			t.Fatal("model should not be called for a small window")
			return provider.Response{}, nil
		},
	}
	s := NewModelSelector(mock, Config{}, discardLogger())

	got, err := s.Select(context.Background(), "query", makeWindow(3))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected whole window back, got %d candidates", len(got))
	}
}

func TestModelSelectorSelectsIndices(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.Request) (provider.Response, error) {
			if len(req.Messages) != 1 {
				t.Errorf("ranking request has %d messages, want 1", len(req.Messages))
			}
			return provider.Response{Content: "[5, 1]"}, nil
		},
	}
	s := NewModelSelector(mock, Config{}, discardLogger())

	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// Selected candidates come back in chronological window order.
	if got[0].Content != "message 1" || got[1].Content != "message 5" {
		t.Errorf("wrong candidates: %q, %q", got[0].Content, got[1].Content)
	}
}

func TestModelSelectorDiscardsOutOfRange(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.Request) (provider.Response, error) {
			return provider.Response{Content: "[0, 42, -3]"}, nil
		},
	}
	s := NewModelSelector(mock, Config{}, discardLogger())

	got, err := s.Select(context.Background(), "query", makeWindow(6))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 1 || got[0].Content != "message 0" {
		t.Fatalf("expected only in-range index 0, got %+v", got)
	}
}

func TestModelSelectorBoundsToCandidateWindow(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.Request) (provider.Response, error) {
			return provider.Response{Content: "[0]"}, nil
		},
	}
	s := NewModelSelector(mock, Config{CandidateWindow: 4}, discardLogger())

	// Index 0 refers to the start of the bounded window, not the full one.
	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 1 || got[0].Content != "message 6" {
		t.Fatalf("expected bounded index 0 = message 6, got %+v", got)
	}
}

func TestModelSelectorMalformedReplyFailsOpen(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{"sure, here you go: [1, 2]", "not json", `{"indices": [1]}`} {
		mock := &providertest.MockProvider{
			CompleteFunc: func(context.Context, provider.Request) (provider.Response, error) {
				return provider.Response{Content: reply}, nil
			},
		}
		var reason string
		s := NewModelSelector(mock, Config{}, discardLogger(),
			WithModelFallbackHook(func(r string) { reason = r }))

		got, err := s.Select(context.Background(), "query", makeWindow(10))
		if err != nil {
			t.Fatalf("reply %q: Select should fail open, got error: %v", reply, err)
		}
		if len(got) != 0 {
			t.Errorf("reply %q: expected empty result, got %d candidates", reply, len(got))
		}
		if reason != "parse" {
			t.Errorf("reply %q: fallback reason = %q, want %q", reply, reason, "parse")
		}
	}
}

func TestModelSelectorCallErrorFailsOpen(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Err: provider.ErrOverloaded},
	}}
	s := NewModelSelector(script, Config{}, discardLogger())

	got, err := s.Select(context.Background(), "query", makeWindow(10))
	if err != nil {
		t.Fatalf("Select should fail open, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(got))
	}
}
