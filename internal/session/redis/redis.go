package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MoonJiyun2/IdeaShelf/internal/session"
)

const keyPrefix = "ideashelf:session:"

// Store implements session.Store on Redis. Every save refreshes the TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis-backed session store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(id string) string {
	return keyPrefix + id
}

// Load retrieves the session data for the given ID.
// Returns a fresh session if none exists.
func (s *Store) Load(ctx context.Context, id string) (session.Data, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.New(), nil
		}
		return session.Data{}, fmt.Errorf("get session from redis: %w", err)
	}

	d := session.New()
	if err := json.Unmarshal(data, &d); err != nil {
		return session.Data{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return d, nil
}

// Save stores the session data with the configured TTL.
func (s *Store) Save(ctx context.Context, id string, d session.Data) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session in redis: %w", err)
	}
	return nil
}
