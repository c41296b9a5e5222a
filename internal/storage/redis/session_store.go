package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

const sessionKeyPrefix = "session:"

type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(r *Redis) *SessionStore {
	return &SessionStore{client: r.Client}
}

func (s *SessionStore) Save(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	const op = "redis.SessionStore.Save"

	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.Token, b, ttl).Err(); err != nil {
		return e.WrapError(ctx, op, err)
	}
	return nil
}

// Get returns ErrNotFound for unknown and expired tokens alike.
func (s *SessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	const op = "redis.SessionStore.Get"

	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	const op = "redis.SessionStore.Delete"

	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return e.WrapError(ctx, op, err)
	}
	return nil
}
