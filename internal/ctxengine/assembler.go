package ctxengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/braid-ai/braid/internal/memory"
	"github.com/braid-ai/braid/internal/provider"
	"github.com/braid-ai/braid/internal/relevance"
	"github.com/braid-ai/braid/internal/tokens"
)

// Block labels for the injected context sections.
const (
	summaryLabel  = "[Previous conversation context]: "
	relevantLabel = "[Relevant past context for this question]:\n"
)

// Assembled is the output of context assembly, ready to hand to the
// invocation layer.
type Assembled struct {
	// System is the persona prompt.
	System string

	// Messages is the ordered context: optional summary block, optional
	// relevant-context block, recent tail, current query.
	Messages []provider.Message

	// EstimatedTokens is the measured size of the assembled context.
	// Reported for observability; assembly never truncates to a budget.
	EstimatedTokens int
}

// Assembler builds the complete model context for one participant turn.
//
// Assembly is strictly ordered: persona, summary block (when a summary
// exists), relevant-context block (when the selector returns anything),
// the verbatim tail of recent messages, then the current query. Optional
// blocks are omitted entirely when empty, never left as bare labels.
type Assembler struct {
	messages  memory.MessageStore
	summaries memory.SummaryStore
	selector  relevance.Selector
	counter   tokens.Counter
	config    Config
	logger    *slog.Logger
}

// NewAssembler creates an Assembler. A nil selector disables the
// relevant-context block.
func NewAssembler(messages memory.MessageStore, summaries memory.SummaryStore, selector relevance.Selector, counter tokens.Counter, cfg Config, logger *slog.Logger) *Assembler {
	return &Assembler{
		messages:  messages,
		summaries: summaries,
		selector:  selector,
		counter:   counter,
		config:    cfg.withDefaults(),
		logger:    logger,
	}
}

// Assemble builds the context for the given participant and query.
// Storage failures abort the turn; relevance failures do not.
func (a *Assembler) Assemble(ctx context.Context, persona, participantID, query string) (Assembled, error) {
	summary, err := a.summaries.Get(ctx, participantID)
	if err != nil {
		return Assembled{}, fmt.Errorf("ctxengine: load summary: %w", err)
	}

	recent, err := a.messages.Recent(ctx, participantID, a.config.RecentWindow)
	if err != nil {
		return Assembled{}, fmt.Errorf("ctxengine: load recent messages: %w", err)
	}

	var msgs []provider.Message

	if summary != "" {
		msgs = append(msgs, provider.Message{
			Role:    provider.RoleAssistant,
			Content: summaryLabel + summary,
		})
	}

	if block := a.relevantBlock(ctx, query, recent); block != "" {
		msgs = append(msgs, provider.Message{
			Role:    provider.RoleAssistant,
			Content: block,
		})
	}

	tail := recent
	if len(tail) > a.config.TailWindow {
		tail = tail[len(tail)-a.config.TailWindow:]
	}
	for _, m := range tail {
		msgs = append(msgs, provider.Message{Role: m.Role, Content: m.Content})
	}

	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: query})

	return Assembled{
		System:          persona,
		Messages:        msgs,
		EstimatedTokens: tokens.CountRequest(a.counter, persona, msgs),
	}, nil
}

// relevantBlock runs the relevance selector over the recent window and
// formats the result. An empty selection, a nil selector, or a selector
// error all yield an empty block.
func (a *Assembler) relevantBlock(ctx context.Context, query string, recent []memory.Message) string {
	if a.selector == nil {
		return ""
	}

	window := make([]relevance.Candidate, len(recent))
	for i, m := range recent {
		window[i] = relevance.Candidate{Index: i, Role: m.Role, Content: m.Content}
	}

	selected, err := a.selector.Select(ctx, query, window)
	if err != nil {
		// Selectors already fail open internally; anything surfacing
		// here is unexpected but still not worth aborting the turn.
		a.logger.Warn("relevance selection failed, continuing without relevant context", "error", err)
		return ""
	}
	if len(selected) == 0 {
		return ""
	}

	lines := make([]string, len(selected))
	for i, c := range selected {
		lines[i] = fmt.Sprintf("%s: %s", c.Role, c.Content)
	}
	return relevantLabel + strings.Join(lines, "\n")
}
