package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/braid-ai/braid/internal/memory"
	"github.com/braid-ai/braid/internal/provider"
)

// Append durably stores a message at the next per-participant sequence
// number. Any failure is wrapped in memory.ErrStorage — losing a message
// breaks conversation continuity, so the caller must abort the turn.
func (s *Store) Append(ctx context.Context, participantID string, role provider.Role, content string, tokenCost int) error {
	if _, err := provider.ParseRole(string(role)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (participant_id, seq, role, content, token_cost)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE participant_id = ?), 0) + 1,
		        ?, ?, ?)`,
		participantID, participantID,
		string(role), content, tokenCost,
	)
	if err != nil {
		return fmt.Errorf("%w: append message: %w", memory.ErrStorage, err)
	}

	return nil
}

// Recent returns the limit most recent messages, re-ordered to chronological.
func (s *Store) Recent(ctx context.Context, participantID string, limit int) ([]memory.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, token_cost, created_at
		FROM messages
		WHERE participant_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		participantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %w", memory.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []memory.Message
	for rows.Next() {
		msg, err := scanMessage(rows, participantID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent rows: %w", memory.ErrStorage, err)
	}

	// Reverse to chronological order.
	slices.Reverse(msgs)
	return msgs, nil
}

// Count returns the total number of messages for a participant.
func (s *Store) Count(ctx context.Context, participantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE participant_id = ?",
		participantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", memory.ErrStorage, err)
	}
	return n, nil
}

// Participants returns every participant with at least one message.
func (s *Store) Participants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT participant_id FROM messages")
	if err != nil {
		return nil, fmt.Errorf("%w: participants: %w", memory.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan participant: %w", memory.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: participant rows: %w", memory.ErrStorage, err)
	}
	return ids, nil
}

// Get returns the stored summary, or "" if none exists.
func (s *Store) Get(ctx context.Context, participantID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		"SELECT summary FROM summaries WHERE participant_id = ?",
		participantID,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get summary: %w", memory.ErrStorage, err)
	}
	return summary, nil
}

// Put upserts the summary for a participant, replacing any prior value.
func (s *Store) Put(ctx context.Context, participantID string, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (participant_id, summary, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(participant_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at`,
		participantID, summary,
	)
	if err != nil {
		return fmt.Errorf("%w: put summary: %w", memory.ErrStorage, err)
	}
	return nil
}

// scanMessage reads one message row.
func scanMessage(rows *sql.Rows, participantID string) (memory.Message, error) {
	var (
		msg       memory.Message
		role      string
		createdAt string
	)
	if err := rows.Scan(&msg.Seq, &role, &msg.Content, &msg.TokenCost, &createdAt); err != nil {
		return memory.Message{}, fmt.Errorf("%w: scan message: %w", memory.ErrStorage, err)
	}

	msg.ParticipantID = participantID
	msg.Role = provider.Role(role)

	ts, err := time.Parse("2006-01-02T15:04:05.999Z", createdAt)
	if err != nil {
		return memory.Message{}, fmt.Errorf("%w: parse created_at %q: %w", memory.ErrStorage, createdAt, err)
	}
	msg.CreatedAt = ts

	return msg, nil
}
