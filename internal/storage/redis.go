package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PoluyanbIch/GoQuizBot/internal/service"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// RedisSessionStore keeps each conversation as a JSON blob with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

var _ service.SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{redis: client, prefix: "quiz:session", ttl: ttl}
}

func (s *RedisSessionStore) key(userID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, userID)
}

func (s *RedisSessionStore) Load(ctx context.Context, userID int64) (*service.Conversation, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	var conv service.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, userID int64, conv *service.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set conversation: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
