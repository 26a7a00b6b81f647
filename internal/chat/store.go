// Package chat manages conversations between web users and the model.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/mwito/internal/llm"
)

// HistoryStore holds per-conversation message history.
type HistoryStore interface {
	// GetOrCreate returns the conversation, creating it under the given
	// owner if it does not exist. Fails when it belongs to another user.
	GetOrCreate(ctx context.Context, userID string, convID uuid.UUID) (uuid.UUID, error)
	// Append adds messages to the conversation.
	Append(ctx context.Context, convID uuid.UUID, msgs []llm.Message) error
	// History returns up to maxMessages of the most recent messages.
	History(ctx context.Context, convID uuid.UUID, maxMessages int) ([]llm.Message, error)
	// Delete removes the conversation and its history.
	Delete(ctx context.Context, convID uuid.UUID) error
}

// InMemoryHistoryStore implements HistoryStore without persistence.
// History is lost on restart.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	history map[uuid.UUID][]llm.Message
	owners  map[uuid.UUID]string
}

// NewInMemoryHistoryStore creates an ephemeral history store.
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		history: make(map[uuid.UUID][]llm.Message),
		owners:  make(map[uuid.UUID]string),
	}
}

func (s *InMemoryHistoryStore) GetOrCreate(_ context.Context, userID string, convID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[convID]; ok {
		if owner != userID {
			return uuid.Nil, fmt.Errorf("conversation belongs to a different user")
		}
		return convID, nil
	}

	s.owners[convID] = userID
	s.history[convID] = nil
	return convID, nil
}

func (s *InMemoryHistoryStore) Append(_ context.Context, convID uuid.UUID, msgs []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[convID] = append(s.history[convID], msgs...)
	return nil
}

func (s *InMemoryHistoryStore) History(_ context.Context, convID uuid.UUID, maxMessages int) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hist := s.history[convID]
	if maxMessages > 0 && len(hist) > maxMessages {
		hist = hist[len(hist)-maxMessages:]
	}

	cp := make([]llm.Message, len(hist))
	copy(cp, hist)
	return cp, nil
}

func (s *InMemoryHistoryStore) Delete(_ context.Context, convID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, convID)
	delete(s.owners, convID)
	return nil
}

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistoryStore)(nil)
