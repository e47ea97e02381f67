// Package engine drives one conversational turn end to end: context
// assembly, model invocation with bounded retries, durable persistence,
// usage accounting, and the summary refresh cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/braid-ai/braid/internal/provider"
)

// ErrRetriesExhausted indicates every attempt failed with a transient error.
var ErrRetriesExhausted = errors.New("engine: retries exhausted")

// invokeState is the invocation state machine position.
type invokeState int

const (
	stateInit invokeState = iota
	stateCalling
	stateRetry
	stateSuccess
	stateFailed
)

// String returns a human-readable label for the invocation state.
func (s invokeState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateCalling:
		return "calling"
	case stateRetry:
		return "retry"
	case stateSuccess:
		return "success"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InvokerConfig controls retry behavior.
type InvokerConfig struct {
	// MaxAttempts bounds the total number of model calls per invocation.
	// Default: 5.
	MaxAttempts int

	// InitialBackoff is the delay after the first transient failure.
	// Doubles per retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff duration. Default: 60s.
	MaxBackoff time.Duration

	// AttemptTimeout bounds each individual model call. Default: 120s.
	AttemptTimeout time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *InvokerConfig) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 120 * time.Second
	}
}

// Invoker calls the provider with bounded retries and exponential backoff.
// Transient provider errors and per-attempt timeouts consume a retry; fatal
// errors and caller cancellation stop immediately.
type Invoker struct {
	provider provider.Provider
	config   InvokerConfig
	logger   *slog.Logger

	// onRetry is called before each backoff sleep. Used for metrics;
	// may be nil.
	onRetry func(attempt int, delay time.Duration, err error)

	// sleep is injectable for testing. Defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// InvokerOption configures optional Invoker behavior.
type InvokerOption func(*Invoker)

// WithRetryHook registers a callback fired before each backoff sleep.
func WithRetryHook(fn func(attempt int, delay time.Duration, err error)) InvokerOption {
	return func(i *Invoker) { i.onRetry = fn }
}

// withSleep replaces the backoff sleep. Test-only.
func withSleep(fn func(ctx context.Context, d time.Duration) error) InvokerOption {
	return func(i *Invoker) { i.sleep = fn }
}

// NewInvoker creates an Invoker around the given provider.
func NewInvoker(p provider.Provider, cfg InvokerConfig, logger *slog.Logger, opts ...InvokerOption) *Invoker {
	cfg.defaults()
	inv := &Invoker{
		provider: p,
		config:   cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs the retry state machine until success, a fatal error, caller
// cancellation, or attempt exhaustion.
func (i *Invoker) Invoke(ctx context.Context, req provider.Request) (provider.Response, error) {
	state := stateInit
	backoff := i.config.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= i.config.MaxAttempts; attempt++ {
		state = stateCalling

		resp, err := i.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Caller cancellation stops everything; the reply (if any)
		// must not be used.
		if ctx.Err() != nil {
			state = stateFailed
			return provider.Response{}, fmt.Errorf("engine: invocation cancelled: %w", ctx.Err())
		}

		if !i.retryable(ctx, err) || attempt == i.config.MaxAttempts {
			state = stateFailed
			break
		}

		state = stateRetry
		i.logger.Warn("model call failed, retrying",
			"attempt", attempt,
			"max_attempts", i.config.MaxAttempts,
			"backoff", backoff,
			"state", state.String(),
			"error", err,
		)
		if i.onRetry != nil {
			i.onRetry(attempt, backoff, err)
		}
		if err := i.sleep(ctx, backoff); err != nil {
			return provider.Response{}, fmt.Errorf("engine: invocation cancelled: %w", err)
		}
		backoff = min(backoff*2, i.config.MaxBackoff)
	}

	if provider.IsRetryable(lastErr) || errors.Is(lastErr, context.DeadlineExceeded) {
		return provider.Response{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, i.config.MaxAttempts, lastErr)
	}
	return provider.Response{}, lastErr
}

// attempt runs one bounded model call.
func (i *Invoker) attempt(ctx context.Context, req provider.Request) (provider.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.config.AttemptTimeout)
	defer cancel()
	return i.provider.Complete(attemptCtx, req)
}

// retryable reports whether err consumes a retry. A per-attempt deadline
// counts as transient as long as the caller's context is still live.
func (i *Invoker) retryable(ctx context.Context, err error) bool {
	if provider.IsRetryable(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
