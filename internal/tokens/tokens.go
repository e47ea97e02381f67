// Package tokens provides token counting for observability. Counts are
// reported, never enforced: the engine measures assembled contexts but does
// not truncate them to a budget.
package tokens

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/braid-ai/braid/internal/provider"
)

// Counter estimates the token count of a string.
type Counter interface {
	Count(text string) int
}

// perMessageOverhead approximates the role and framing tokens the API adds
// around each message.
const perMessageOverhead = 4

// CharCounter estimates tokens using a characters-per-token ratio.
// A ratio of ~4 works well for English.
type CharCounter struct {
	CharsPerToken float64
}

// NewCharCounter creates a CharCounter with the given ratio.
// A ratio <= 0 defaults to 4.0.
func NewCharCounter(charsPerToken float64) *CharCounter {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharCounter{CharsPerToken: charsPerToken}
}

// Count returns the estimated token count, rounding up.
func (c *CharCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/c.CharsPerToken) + 1
}

// TiktokenCounter counts tokens with a real BPE encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// Count returns the exact token count under the configured encoding.
func (c *TiktokenCounter) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// NewCounter returns a tiktoken-backed counter using the cl100k_base
// encoding, falling back to a character-ratio estimate when the encoding
// data cannot be loaded (e.g. offline first run).
func NewCounter(logger *slog.Logger) Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken unavailable, using character estimate", "error", err)
		}
		return NewCharCounter(4.0)
	}
	return &TiktokenCounter{encoding: enc}
}

// CountRequest returns the estimated input tokens for a full model request:
// system prompt plus every message with per-message overhead.
func CountRequest(c Counter, system string, msgs []provider.Message) int {
	total := c.Count(system)
	for i := range msgs {
		total += perMessageOverhead + c.Count(msgs[i].Content)
	}
	return total
}
