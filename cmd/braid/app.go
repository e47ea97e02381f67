package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/braid-ai/braid/internal/config"
	"github.com/braid-ai/braid/internal/ctxengine"
	"github.com/braid-ai/braid/internal/embedding"
	"github.com/braid-ai/braid/internal/engine"
	"github.com/braid-ai/braid/internal/ledger"
	"github.com/braid-ai/braid/internal/memory/sqlite"
	"github.com/braid-ai/braid/internal/metrics"
	"github.com/braid-ai/braid/internal/provider"
	"github.com/braid-ai/braid/internal/provider/anthropic"
	"github.com/braid-ai/braid/internal/relevance"
	"github.com/braid-ai/braid/internal/tokens"
	"github.com/braid-ai/braid/internal/vecindex"
)

// defaultSecondaryModel handles summary generation and relevance ranking
// when no secondary model is configured.
const defaultSecondaryModel = "claude-3-5-haiku-20241022"

// app bundles everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Store
	engine  *engine.Engine
	metrics *metrics.Metrics
	ledger  *ledger.Ledger
}

// buildApp loads config and wires the full turn pipeline.
func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log.Level)
	m := metrics.New("braid")

	store, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	primary, err := anthropic.New(anthropic.Config{
		APIKey:         cfg.Provider.APIKey,
		Model:          cfg.Provider.Model,
		BaseURL:        cfg.Provider.BaseURL,
		MaxTokens:      cfg.Provider.MaxTokens,
		Temperature:    cfg.Provider.Temperature,
		ThinkingBudget: cfg.Provider.ThinkingBudget,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	secondaryModel := cfg.Provider.SecondaryModel
	if secondaryModel == "" {
		secondaryModel = defaultSecondaryModel
	}
	secondary, err := anthropic.New(anthropic.Config{
		APIKey:  cfg.Provider.APIKey,
		Model:   secondaryModel,
		BaseURL: cfg.Provider.BaseURL,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	counter := tokens.NewCounter(logger)

	selector, err := buildSelector(cfg, secondary, m, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctxCfg := ctxengine.Config{
		RecentWindow:    cfg.Context.RecentWindow,
		TailWindow:      cfg.Context.TailWindow,
		SummaryInterval: cfg.Context.SummaryInterval,
	}
	assembler := ctxengine.NewAssembler(store, store, selector, counter, ctxCfg, logger)
	summarizer := ctxengine.NewSummarizer(secondary, store, store, ctxCfg, logger,
		ctxengine.WithRefreshHook(func(string) { m.SummariesTotal.Inc() }))

	invoker := engine.NewInvoker(primary, engine.InvokerConfig{
		MaxAttempts:    cfg.Invoker.MaxAttempts,
		InitialBackoff: cfg.Invoker.InitialBackoff,
		MaxBackoff:     cfg.Invoker.MaxBackoff,
		AttemptTimeout: cfg.Invoker.AttemptTimeout,
	}, logger, engine.WithRetryHook(func(int, time.Duration, error) { m.RetriesTotal.Inc() }))

	opts := []engine.EngineOption{
		engine.WithHooks(engine.Hooks{
			TurnCompleted:    func(outcome string) { m.TurnsTotal.WithLabelValues(outcome).Inc() },
			TokensUsed:       func(in, out int) { m.InputTokens.Add(float64(in)); m.OutputTokens.Add(float64(out)) },
			ContextAssembled: func(tokens int) { m.ContextTokens.Observe(float64(tokens)) },
		}),
	}

	var led *ledger.Ledger
	if cfg.Ledger.Enabled {
		led, err = ledger.New(ctx, ledger.Config{
			Addr:      cfg.Ledger.Addr,
			Password:  cfg.Ledger.Password,
			DB:        cfg.Ledger.DB,
			CostPer1K: cfg.Ledger.CostPer1K,
			Threshold: cfg.Ledger.Threshold,
			LockTTL:   cfg.Ledger.LockTTL,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		opts = append(opts, engine.WithLedger(led))
	}

	eng := engine.New(cfg.Persona, assembler, invoker, summarizer, store, logger, opts...)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		engine:  eng,
		metrics: m,
		ledger:  led,
	}, nil
}

// buildSelector wires the configured relevance strategy.
func buildSelector(cfg *config.Config, secondary provider.Provider, m *metrics.Metrics, logger *slog.Logger) (relevance.Selector, error) {
	relCfg := relevance.Config{
		K:               cfg.Relevance.K,
		MinWindow:       cfg.Relevance.MinWindow,
		CandidateWindow: cfg.Relevance.CandidateWindow,
	}
	fallback := func(stage string) { m.RelevanceFallbacks.WithLabelValues(stage).Inc() }

	switch cfg.Relevance.Strategy {
	case "vector":
		if cfg.Storage.IndexPath == "" {
			logger.Warn("vector relevance configured without an index, relevant-context block disabled")
			return nil, nil
		}
		index, texts, err := vecindex.Load(cfg.Storage.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("loading passage index: %w", err)
		}
		embedder := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  cfg.Relevance.Embedding.APIKey,
			BaseURL: cfg.Relevance.Embedding.BaseURL,
			Model:   cfg.Relevance.Embedding.Model,
			Timeout: cfg.Relevance.Embedding.Timeout,
		})
		return relevance.NewVectorSelector(embedder, index, texts, relCfg, logger,
			relevance.WithFallbackHook(fallback)), nil
	case "model":
		return relevance.NewModelSelector(secondary, relCfg, logger,
			relevance.WithModelFallbackHook(fallback)), nil
	default: // "off"
		return nil, nil
	}
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.ledger != nil {
		a.ledger.Close()
	}
	a.store.Close()
}
