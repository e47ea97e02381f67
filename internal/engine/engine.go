package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/braid-ai/braid/internal/ctxengine"
	"github.com/braid-ai/braid/internal/memory"
	"github.com/braid-ai/braid/internal/provider"
)

// ErrParticipantLocked indicates the usage ledger has locked the
// participant out of further turns.
var ErrParticipantLocked = errors.New("engine: participant locked by usage ledger")

// Ledger is the usage accounting surface the engine needs. A nil Ledger
// disables accounting entirely.
type Ledger interface {
	// Accrue records token usage for a participant and reports whether
	// the accrual pushed them over the threshold into a locked state.
	Accrue(ctx context.Context, participantID string, tokens int) (locked bool, err error)

	// Locked reports whether the participant is currently locked.
	Locked(ctx context.Context, participantID string) (bool, error)
}

// Result is the outcome of one completed turn.
type Result struct {
	Reply            string
	Usage            provider.Usage
	ContextTokens    int
	SummaryRefreshed bool
}

// Hooks carries optional observability callbacks. All fields may be nil.
type Hooks struct {
	// TurnCompleted is called once per Turn with "success" or "failed".
	TurnCompleted func(outcome string)

	// TokensUsed is called after a successful invocation.
	TokensUsed func(input, output int)

	// ContextAssembled is called with the measured context size.
	ContextAssembled func(tokens int)
}

// Engine is the turn pipeline: assemble, invoke, persist, account,
// summarize. Turns for different participants run concurrently; turns for
// the same participant are serialized.
type Engine struct {
	persona    string
	assembler  *ctxengine.Assembler
	invoker    *Invoker
	summarizer *ctxengine.Summarizer
	messages   memory.MessageStore
	ledger     Ledger
	logger     *slog.Logger
	hooks      Hooks

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithLedger attaches a usage ledger.
func WithLedger(l Ledger) EngineOption {
	return func(e *Engine) { e.ledger = l }
}

// WithHooks attaches observability callbacks.
func WithHooks(h Hooks) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// New creates an Engine.
func New(persona string, assembler *ctxengine.Assembler, invoker *Invoker, summarizer *ctxengine.Summarizer, messages memory.MessageStore, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		persona:    persona,
		assembler:  assembler,
		invoker:    invoker,
		summarizer: summarizer,
		messages:   messages,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// participantLock returns the serialization mutex for a participant.
func (e *Engine) participantLock(participantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[participantID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[participantID] = l
	}
	return l
}

// Turn runs one complete conversational turn for a participant.
//
// The user query and the assistant reply are persisted together, in that
// order, and only after the invocation succeeds: a failed or cancelled turn
// leaves the log exactly as it was. The summary trigger check runs after
// both writes so the message count it sees includes the current turn.
func (e *Engine) Turn(ctx context.Context, participantID, text string) (Result, error) {
	lock := e.participantLock(participantID)
	lock.Lock()
	defer lock.Unlock()

	if e.ledger != nil {
		locked, err := e.ledger.Locked(ctx, participantID)
		if err != nil {
			// Accounting outage must not take conversations down.
			e.logger.Warn("ledger lock check failed, continuing", "participant", participantID, "error", err)
		} else if locked {
			e.finish("failed")
			return Result{}, fmt.Errorf("%w: %s", ErrParticipantLocked, participantID)
		}
	}

	assembled, err := e.assembler.Assemble(ctx, e.persona, participantID, text)
	if err != nil {
		e.finish("failed")
		return Result{}, err
	}
	if e.hooks.ContextAssembled != nil {
		e.hooks.ContextAssembled(assembled.EstimatedTokens)
	}

	resp, err := e.invoker.Invoke(ctx, provider.Request{
		System:   assembled.System,
		Messages: assembled.Messages,
	})
	if err != nil {
		e.finish("failed")
		return Result{}, err
	}

	if err := e.messages.Append(ctx, participantID, provider.RoleUser, text, resp.Usage.InputTokens); err != nil {
		e.finish("failed")
		return Result{}, err
	}
	if err := e.messages.Append(ctx, participantID, provider.RoleAssistant, resp.Content, resp.Usage.OutputTokens); err != nil {
		e.finish("failed")
		return Result{}, err
	}

	if e.ledger != nil {
		locked, err := e.ledger.Accrue(ctx, participantID, resp.Usage.Total())
		if err != nil {
			e.logger.Warn("ledger accrual failed", "participant", participantID, "error", err)
		} else if locked {
			e.logger.Info("participant crossed usage threshold and is now locked", "participant", participantID)
		}
	}

	refreshed := e.maybeSummarize(ctx, participantID)

	if e.hooks.TokensUsed != nil {
		e.hooks.TokensUsed(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	e.finish("success")

	return Result{
		Reply:            resp.Content,
		Usage:            resp.Usage,
		ContextTokens:    assembled.EstimatedTokens,
		SummaryRefreshed: refreshed,
	}, nil
}

// maybeSummarize refreshes the rolling summary when the interval is due.
// Never fatal to the turn.
func (e *Engine) maybeSummarize(ctx context.Context, participantID string) bool {
	if e.summarizer == nil {
		return false
	}
	due, err := e.summarizer.Due(ctx, participantID)
	if err != nil {
		e.logger.Warn("summary trigger check failed", "participant", participantID, "error", err)
		return false
	}
	if !due {
		return false
	}
	if err := e.summarizer.Refresh(ctx, participantID); err != nil {
		e.logger.Warn("summary refresh failed, keeping prior summary", "participant", participantID, "error", err)
		return false
	}
	return true
}

// Ingest seeds an empty participant log from a prior conversation transcript.
// A participant with existing history is left untouched; the durable log is
// the source of truth once it exists. Returns the number of messages stored.
func (e *Engine) Ingest(ctx context.Context, participantID string, transcript []provider.Message) (int, error) {
	lock := e.participantLock(participantID)
	lock.Lock()
	defer lock.Unlock()

	count, err := e.messages.Count(ctx, participantID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for i, m := range transcript {
		if err := e.messages.Append(ctx, participantID, m.Role, m.Content, 0); err != nil {
			return i, fmt.Errorf("engine: ingest transcript: %w", err)
		}
	}
	return len(transcript), nil
}

// Sweep repairs missing rolling summaries across all participants: any
// participant past the summary interval with no stored summary gets a
// refresh. Used by the serve-mode maintenance schedule.
func (e *Engine) Sweep(ctx context.Context, summaries memory.SummaryStore, interval int) error {
	if e.summarizer == nil {
		return nil
	}

	participants, err := e.messages.Participants(ctx)
	if err != nil {
		return fmt.Errorf("engine: sweep: %w", err)
	}

	for _, id := range participants {
		summary, err := summaries.Get(ctx, id)
		if err != nil {
			e.logger.Warn("sweep: summary read failed", "participant", id, "error", err)
			continue
		}
		if summary != "" {
			continue
		}
		count, err := e.messages.Count(ctx, id)
		if err != nil {
			e.logger.Warn("sweep: count failed", "participant", id, "error", err)
			continue
		}
		if count < interval {
			continue
		}
		if err := e.summarizer.Refresh(ctx, id); err != nil {
			e.logger.Warn("sweep: summary refresh failed", "participant", id, "error", err)
		}
	}
	return nil
}

func (e *Engine) finish(outcome string) {
	if e.hooks.TurnCompleted != nil {
		e.hooks.TurnCompleted(outcome)
	}
}
