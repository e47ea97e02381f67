package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/braid-ai/braid/internal/provider"
	"github.com/braid-ai/braid/internal/provider/providertest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// noSleep records requested backoff delays without waiting.
func noSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestInvokeFirstTrySuccess(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Response: provider.Response{Content: "hi", Usage: provider.Usage{InputTokens: 10, OutputTokens: 5}}},
	}}
	var delays []time.Duration
	inv := NewInvoker(script, InvokerConfig{}, testLogger(), withSleep(noSleep(&delays)))

	resp, err := inv.Invoke(context.Background(), provider.Request{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("Content = %q, want %q", resp.Content, "hi")
	}
	if script.Calls() != 1 {
		t.Errorf("calls = %d, want 1", script.Calls())
	}
	if len(delays) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", delays)
	}
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Err: provider.ErrOverloaded},
		{Err: provider.ErrRateLimit},
		{Err: provider.ErrOverloaded},
		{Err: provider.ErrOverloaded},
		{Response: provider.Response{Content: "finally"}},
	}}
	var delays []time.Duration
	var retries int
	inv := NewInvoker(script, InvokerConfig{InitialBackoff: time.Second}, testLogger(),
		withSleep(noSleep(&delays)),
		WithRetryHook(func(int, time.Duration, error) { retries++ }))

	resp, err := inv.Invoke(context.Background(), provider.Request{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Content != "finally" {
		t.Errorf("Content = %q, want %q", resp.Content, "finally")
	}
	if script.Calls() != 5 {
		t.Errorf("calls = %d, want 5", script.Calls())
	}
	if retries != 4 {
		t.Errorf("retry hook fired %d times, want 4", retries)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestInvokeBackoffCap(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Err: provider.ErrOverloaded},
	}}
	var delays []time.Duration
	inv := NewInvoker(script, InvokerConfig{
		MaxAttempts:    6,
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
	}, testLogger(), withSleep(noSleep(&delays)))

	_, err := inv.Invoke(context.Background(), provider.Request{})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestInvokeExhaustsRetries(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Err: provider.ErrOverloaded},
	}}
	var delays []time.Duration
	inv := NewInvoker(script, InvokerConfig{}, testLogger(), withSleep(noSleep(&delays)))

	_, err := inv.Invoke(context.Background(), provider.Request{})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, provider.ErrOverloaded) {
		t.Errorf("err should wrap the last provider error, got %v", err)
	}
	if script.Calls() != 5 {
		t.Errorf("calls = %d, want 5", script.Calls())
	}
}

func TestInvokeFatalErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	script := &providertest.ScriptProvider{Steps: []providertest.ScriptStep{
		{Err: provider.ErrAuth},
	}}
	var delays []time.Duration
	inv := NewInvoker(script, InvokerConfig{}, testLogger(), withSleep(noSleep(&delays)))

	_, err := inv.Invoke(context.Background(), provider.Request{})
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("fatal error must not be reported as retry exhaustion")
	}
	if script.Calls() != 1 {
		t.Errorf("calls = %d, want 1", script.Calls())
	}
	if len(delays) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", delays)
	}
}

func TestInvokeCancellationStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	mock := &providertest.MockProvider{
		CompleteFunc: func(ctx context.Context, _ provider.Request) (provider.Response, error) {
			cancel()
			return provider.Response{}, provider.ErrOverloaded
		},
	}
	inv := NewInvoker(mock, InvokerConfig{}, testLogger())

	_, err := inv.Invoke(ctx, provider.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("calls = %d, want 1 (no retries after cancellation)", mock.CompleteCalls())
	}
}
