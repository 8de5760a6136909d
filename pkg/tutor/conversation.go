package tutor

import (
	"context"
	"sync"
	"time"
)

// Message is one stored conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationStore persists per-conversation history. The orchestrator
// only depends on this interface, so the backing store is swappable
// (in-memory for tests, Redis for deployments) without touching the
// turn logic.
type ConversationStore interface {
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Append(ctx context.Context, conversationID string, messages ...Message) error
	Clear(ctx context.Context, conversationID string) error
}

// MemoryConversationStore keeps history in-process.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
}

// NewMemoryConversationStore initializes an empty store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{conversations: make(map[string][]Message)}
}

// History returns the most recent limit messages in chronological
// order. limit <= 0 means all.
func (m *MemoryConversationStore) History(_ context.Context, conversationID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages := m.conversations[conversationID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out, nil
}

// Append adds messages to the conversation.
func (m *MemoryConversationStore) Append(_ context.Context, conversationID string, messages ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversationID] = append(m.conversations[conversationID], messages...)
	return nil
}

// Clear removes the conversation.
func (m *MemoryConversationStore) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
	return nil
}
