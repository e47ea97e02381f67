// Package gateway exposes the turn pipeline over HTTP: a turn endpoint,
// participant summary and usage lookups, health, and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/braid-ai/braid/internal/engine"
	"github.com/braid-ai/braid/internal/memory"
)

// TurnEngine is the engine surface the gateway drives.
type TurnEngine interface {
	Turn(ctx context.Context, participantID, text string) (engine.Result, error)
}

// UsageLedger is the optional accounting surface. Nil disables the usage
// endpoints.
type UsageLedger interface {
	Balance(ctx context.Context, participantID string) (float64, error)
	Locked(ctx context.Context, participantID string) (bool, error)
	Unlock(ctx context.Context, participantID string) error
}

// Gateway is the HTTP server around the turn pipeline.
type Gateway struct {
	config    Config
	engine    TurnEngine
	summaries memory.SummaryStore
	ledger    UsageLedger
	metrics   http.Handler
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// GatewayOption configures optional Gateway behavior.
type GatewayOption func(*Gateway)

// WithLedger mounts the usage endpoints over the given ledger.
func WithLedger(l UsageLedger) GatewayOption {
	return func(g *Gateway) { g.ledger = l }
}

// WithMetricsHandler mounts the given handler at /metrics.
func WithMetricsHandler(h http.Handler) GatewayOption {
	return func(g *Gateway) { g.metrics = h }
}

// New creates a Gateway. Call Start to begin serving.
func New(cfg Config, eng TurnEngine, summaries memory.SummaryStore, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	cfg.defaults()
	g := &Gateway{
		config:    cfg,
		engine:    eng,
		summaries: summaries,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start binds the listener and serves in a background goroutine.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
