// Package metrics exposes Prometheus instrumentation for the turn pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the engine and gateway report into.
// All collectors are registered on the Registry carried alongside them, so
// tests can use isolated registries.
type Metrics struct {
	Registry *prometheus.Registry

	// TurnsTotal counts completed turns by outcome ("success"/"failed").
	TurnsTotal *prometheus.CounterVec

	// InputTokens and OutputTokens accumulate reported model usage.
	InputTokens  prometheus.Counter
	OutputTokens prometheus.Counter

	// ContextTokens observes the measured size of each assembled context.
	ContextTokens prometheus.Histogram

	// RetriesTotal counts transient-failure retries in the invocation layer.
	RetriesTotal prometheus.Counter

	// RelevanceFallbacks counts relevance selections that degraded to an
	// empty result, by stage.
	RelevanceFallbacks *prometheus.CounterVec

	// SummariesTotal counts successful rolling-summary refreshes.
	SummariesTotal prometheus.Counter
}

// New creates a Metrics set on a fresh registry, including the standard Go
// runtime and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversational turns by outcome.",
		}, []string{"outcome"}),
		InputTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_tokens_total",
			Help:      "Total input tokens reported by the model provider.",
		}),
		OutputTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_tokens_total",
			Help:      "Total output tokens reported by the model provider.",
		}),
		ContextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_tokens",
			Help:      "Measured token size of assembled contexts.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
		}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocation_retries_total",
			Help:      "Total transient-failure retries in the invocation layer.",
		}),
		RelevanceFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relevance_fallbacks_total",
			Help:      "Relevance selections that degraded to an empty result.",
		}, []string{"stage"}),
		SummariesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_refreshes_total",
			Help:      "Successful rolling-summary refreshes.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}
