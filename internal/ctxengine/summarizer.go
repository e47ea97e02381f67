package ctxengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/braid-ai/braid/internal/memory"
	"github.com/braid-ai/braid/internal/provider"
)

// summaryPrompt condenses a conversation window into a rolling summary.
const summaryPrompt = `Summarize this conversation, focusing on:
- The user's main struggles or concerns
- Key advice or perspectives shared
- Any progress or insights gained
- Important recurring themes

Keep it concise (2-3 paragraphs max).

Conversation:
%s`

// summaryMaxTokens bounds the summary call.
const summaryMaxTokens = 300

// Summarizer regenerates the rolling summary for a participant from the
// retained message window. A failed refresh leaves the prior summary in
// place; the log keeps accumulating and the next interval retries.
type Summarizer struct {
	provider  provider.Provider
	messages  memory.MessageStore
	summaries memory.SummaryStore
	config    Config
	logger    *slog.Logger

	// onRefresh is invoked after a successful refresh. Used for metrics;
	// may be nil.
	onRefresh func(participantID string)
}

// SummarizerOption configures optional Summarizer behavior.
type SummarizerOption func(*Summarizer)

// WithRefreshHook registers a callback fired after each successful refresh.
func WithRefreshHook(fn func(participantID string)) SummarizerOption {
	return func(s *Summarizer) { s.onRefresh = fn }
}

// NewSummarizer creates a Summarizer. The provider is typically a faster,
// cheaper model than the primary conversational one.
func NewSummarizer(p provider.Provider, messages memory.MessageStore, summaries memory.SummaryStore, cfg Config, logger *slog.Logger, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		provider:  p,
		messages:  messages,
		summaries: summaries,
		config:    cfg.withDefaults(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Due reports whether a refresh is due for the given participant.
func (s *Summarizer) Due(ctx context.Context, participantID string) (bool, error) {
	count, err := s.messages.Count(ctx, participantID)
	if err != nil {
		return false, fmt.Errorf("ctxengine: count messages: %w", err)
	}
	return ShouldSummarize(count, s.config.SummaryInterval), nil
}

// Refresh regenerates and stores the summary from the retained window.
// The error is informational: callers log it and move on, the prior
// summary stays in place.
func (s *Summarizer) Refresh(ctx context.Context, participantID string) error {
	recent, err := s.messages.Recent(ctx, participantID, s.config.RecentWindow)
	if err != nil {
		return fmt.Errorf("ctxengine: load window for summary: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	lines := make([]string, len(recent))
	for i, m := range recent {
		lines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}

	resp, err := s.provider.Complete(ctx, provider.Request{
		Messages: []provider.Message{{
			Role:    provider.RoleUser,
			Content: fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")),
		}},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("ctxengine: summary generation: %w", err)
	}

	if err := s.summaries.Put(ctx, participantID, resp.Content); err != nil {
		return fmt.Errorf("ctxengine: store summary: %w", err)
	}

	s.logger.Info("rolling summary refreshed", "participant", participantID)
	if s.onRefresh != nil {
		s.onRefresh(participantID)
	}
	return nil
}
