// Package providertest provides test doubles for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/braid-ai/braid/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set CompleteFunc to control behavior; an unset func panics on call.
// Safe for concurrent use.
type MockProvider struct {
	CompleteFunc  func(ctx context.Context, req provider.Request) (provider.Response, error)
	ModelNameFunc func() string

	mu            sync.Mutex
	completeCalls int
	requests      []provider.Request
}

// Complete delegates to CompleteFunc, recording the call and its request.
func (m *MockProvider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	m.mu.Lock()
	m.completeCalls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc, or returns a fixed name if unset.
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc != nil {
		return m.ModelNameFunc()
	}
	return "mock-model"
}

// CompleteCalls returns the number of Complete invocations so far.
func (m *MockProvider) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// Requests returns a copy of every request passed to Complete.
func (m *MockProvider) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// ScriptProvider replays a fixed sequence of responses/errors, one per
// Complete call. Calls beyond the script repeat the final step.
type ScriptProvider struct {
	Steps []ScriptStep

	mu    sync.Mutex
	calls int
}

// ScriptStep is one scripted Complete outcome.
type ScriptStep struct {
	Response provider.Response
	Err      error
}

// Complete returns the next scripted step.
func (s *ScriptProvider) Complete(_ context.Context, _ provider.Request) (provider.Response, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if len(s.Steps) == 0 {
		return provider.Response{}, nil
	}
	if idx >= len(s.Steps) {
		idx = len(s.Steps) - 1
	}
	step := s.Steps[idx]
	return step.Response, step.Err
}

// ModelName identifies the scripted provider.
func (s *ScriptProvider) ModelName() string { return "script-model" }

// Calls returns the number of Complete invocations so far.
func (s *ScriptProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Interface guards.
var (
	_ provider.Provider = (*MockProvider)(nil)
	_ provider.Provider = (*ScriptProvider)(nil)
)
