package memory

import (
	"context"
	"sync"
	"time"

	"github.com/braid-ai/braid/internal/provider"
)

// participantData holds the log and summary for a single participant.
type participantData struct {
	messages []Message
	summary  string
	nextSeq  int64
}

// InMemoryStore is a thread-safe, in-memory implementation of both
// MessageStore and SummaryStore. Used in tests and ephemeral runs; it does
// not survive restarts.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[string]*participantData

	// now is injectable for deterministic timestamp tests.
	now func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[string]*participantData),
		now:          time.Now,
	}
}

// Compile-time interface checks.
var (
	_ MessageStore = (*InMemoryStore)(nil)
	_ SummaryStore = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) getOrCreate(participantID string) *participantData {
	pd, ok := s.participants[participantID]
	if !ok {
		pd = &participantData{nextSeq: 1}
		s.participants[participantID] = pd
	}
	return pd
}

// Append adds a message to the participant's log.
func (s *InMemoryStore) Append(_ context.Context, participantID string, role provider.Role, content string, tokenCost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd := s.getOrCreate(participantID)
	pd.messages = append(pd.messages, Message{
		ParticipantID: participantID,
		Seq:           pd.nextSeq,
		Role:          role,
		Content:       content,
		TokenCost:     tokenCost,
		CreatedAt:     s.now(),
	})
	pd.nextSeq++
	return nil
}

// Recent returns the limit most recent messages in chronological order.
func (s *InMemoryStore) Recent(_ context.Context, participantID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pd, ok := s.participants[participantID]
	if !ok || limit <= 0 {
		return nil, nil
	}

	msgs := pd.messages
	start := len(msgs) - limit
	if start < 0 {
		start = 0
	}
	result := make([]Message, len(msgs)-start)
	copy(result, msgs[start:])
	return result, nil
}

// Count returns the number of messages stored for a participant.
func (s *InMemoryStore) Count(_ context.Context, participantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pd, ok := s.participants[participantID]
	if !ok {
		return 0, nil
	}
	return len(pd.messages), nil
}

// Participants returns every participant with at least one message.
func (s *InMemoryStore) Participants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, pd := range s.participants {
		if len(pd.messages) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns the stored summary, or "" if none exists.
func (s *InMemoryStore) Get(_ context.Context, participantID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pd, ok := s.participants[participantID]
	if !ok {
		return "", nil
	}
	return pd.summary, nil
}

// Put upserts the summary for a participant.
func (s *InMemoryStore) Put(_ context.Context, participantID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(participantID).summary = summary
	return nil
}
