// Package embedding defines the boundary to the embedding-generation
// service: text in, fixed-length vector out.
package embedding

import (
	"context"
	"errors"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput indicates the text to embed was empty or whitespace.
	ErrEmptyInput = errors.New("embedding: empty input")

	// ErrUnavailable indicates the embedding service could not be reached
	// or returned a failure.
	ErrUnavailable = errors.New("embedding: service unavailable")
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	// Fails with ErrEmptyInput on empty input.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Noop is a stub Embedder that reports itself unavailable. Wiring it
// disables semantic retrieval without touching the rest of the pipeline.
type Noop struct{}

// Embed always returns ErrUnavailable.
func (Noop) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrUnavailable
}

// Interface guard.
var _ Embedder = Noop{}
