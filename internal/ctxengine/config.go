// Package ctxengine assembles the per-turn model context from durable
// conversation state: persona, rolling summary, relevance-selected context,
// and the recent message tail. It also owns the rolling-summary refresh
// cycle.
package ctxengine

// Config holds the tuning knobs for context assembly and summarization.
type Config struct {
	// RecentWindow is how many trailing messages are fetched from storage
	// per turn. The relevance window and summarization input both draw
	// from this fetch.
	RecentWindow int

	// TailWindow is how many of the fetched messages are included
	// verbatim at the end of the assembled context.
	TailWindow int

	// SummaryInterval triggers a summary refresh every N stored messages.
	SummaryInterval int
}

// withDefaults returns a copy of cfg with zero-valued fields replaced.
func (cfg Config) withDefaults() Config {
	if cfg.RecentWindow == 0 {
		cfg.RecentWindow = 40
	}
	if cfg.TailWindow == 0 {
		cfg.TailWindow = 7
	}
	if cfg.SummaryInterval == 0 {
		cfg.SummaryInterval = 15
	}
	return cfg
}

// ShouldSummarize reports whether a summary refresh is due at the given
// message count. Fires on every full interval, never on an empty log.
func ShouldSummarize(count, interval int) bool {
	if interval <= 0 {
		return false
	}
	return count > 0 && count%interval == 0
}
