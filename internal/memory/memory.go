// Package memory defines the durable conversation storage interfaces: an
// append-only per-participant message log and an at-most-one rolling summary
// per participant. In-memory implementations live here; the persistent
// SQLite implementation lives in the sqlite subpackage.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/braid-ai/braid/internal/provider"
)

// ErrStorage wraps any durable write or read failure. Storage failures are
// fatal to the current turn: the engine must not invoke the model with a
// context it cannot anchor to a persisted message.
var ErrStorage = errors.New("memory: storage failure")

// Message is one stored conversation message. Immutable once appended.
type Message struct {
	ParticipantID string
	Seq           int64 // per-participant monotonic, breaks timestamp ties
	Role          provider.Role
	Content       string
	TokenCost     int
	CreatedAt     time.Time
}

// MessageStore is the append-only per-participant message log.
// There is no update or delete: history is strictly additive, and
// corrections are modeled as new messages.
// Implementations must be safe for concurrent use; appends for the same
// participant are serialized by the caller (single writer per key).
type MessageStore interface {
	// Append durably stores a message. A failure is fatal to the turn.
	Append(ctx context.Context, participantID string, role provider.Role, content string, tokenCost int) error

	// Recent returns the limit most recent messages for a participant,
	// re-ordered to chronological (oldest first).
	Recent(ctx context.Context, participantID string, limit int) ([]Message, error)

	// Count returns the total number of stored messages for a participant.
	Count(ctx context.Context, participantID string) (int, error)

	// Participants returns every participant with at least one message.
	Participants(ctx context.Context) ([]string, error)
}

// SummaryStore holds at most one rolling summary per participant.
// Put replaces any prior value; two identical Puts leave equivalent state
// apart from the update timestamp.
type SummaryStore interface {
	// Get returns the stored summary, or "" if none exists.
	Get(ctx context.Context, participantID string) (string, error)

	// Put upserts the summary for a participant.
	Put(ctx context.Context, participantID string, summary string) error
}
