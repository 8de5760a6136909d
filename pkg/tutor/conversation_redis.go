package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConversationStore keeps each conversation as a Redis list of
// JSON-encoded messages, so history survives process restarts and is
// shared across replicas.
type RedisConversationStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConversationOption customizes a RedisConversationStore.
type RedisConversationOption func(*RedisConversationStore)

// WithConversationTTL sets the expiry refreshed on every append.
// Zero means no expiry.
func WithConversationTTL(ttl time.Duration) RedisConversationOption {
	return func(s *RedisConversationStore) { s.ttl = ttl }
}

// NewRedisConversationStore wraps an existing Redis client.
func NewRedisConversationStore(client *redis.Client, opts ...RedisConversationOption) *RedisConversationStore {
	s := &RedisConversationStore{
		client: client,
		prefix: "clara:conversation",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisConversationStore) key(conversationID string) string {
	return s.prefix + ":" + conversationID
}

// History returns the most recent limit messages in chronological
// order. limit <= 0 means all.
func (s *RedisConversationStore) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.key(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation history: %w", err)
	}
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Append pushes messages onto the conversation list and refreshes its TTL.
func (s *RedisConversationStore) Append(ctx context.Context, conversationID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode conversation message: %w", err)
		}
		values = append(values, data)
	}
	key := s.key(conversationID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation message: %w", err)
	}
	return nil
}

// Clear deletes the conversation list.
func (s *RedisConversationStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}
