package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
)

// Redis key prefix for sessions.
const sessionKeyPrefix = "cartsync:session:"

// RedisStore persists sessions in Redis with a TTL matching their expiry.
// Redis handles eviction so there is no cleanup worker.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.ID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id domain.SessionID) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Redis evicted it or it never existed; both read as not found.
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id domain.SessionID) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
