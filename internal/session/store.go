package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homzhub/ticket-engine/internal/models"
)

// keyPrefix namespaces quote-session keys in Redis
const keyPrefix = "quote-session:"

// Store persists in-flight quote sessions. A session exists from Start until
// a successful Submit; Delete is the explicit reset that prevents stale reuse.
type Store interface {
	Get(ctx context.Context, ticketID string) (*models.QuoteSession, error)
	Put(ctx context.Context, s *models.QuoteSession) error
	Delete(ctx context.Context, ticketID string) error
}

// RedisStore implements Store on Redis with per-session TTLs
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(address, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get retrieves the session for a ticket; (nil, nil) when absent
func (s *RedisStore) Get(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	data, err := s.client.Get(ctx, keyPrefix+ticketID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quote session: %w", err)
	}

	var sess models.QuoteSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote session: %w", err)
	}
	return &sess, nil
}

// Put stores the session, bounding its lifetime by the session expiry
func (s *RedisStore) Put(ctx context.Context, sess *models.QuoteSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal quote session: %w", err)
	}

	ttl := s.ttl
	if !sess.ExpiresAt.IsZero() {
		if remaining := time.Until(sess.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}

	if err := s.client.Set(ctx, keyPrefix+sess.TicketID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store quote session: %w", err)
	}
	return nil
}

// Delete removes the session for a ticket
func (s *RedisStore) Delete(ctx context.Context, ticketID string) error {
	if err := s.client.Del(ctx, keyPrefix+ticketID).Err(); err != nil {
		return fmt.Errorf("failed to delete quote session: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
