package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pkolev/warrantyhub/pkg/apperr"
)

// SessionManager issues and resolves opaque bearer tokens. The API layer uses
// Resolve as its identity provider: a verified user id or nothing.
type SessionManager interface {
	Create(ctx context.Context, userID string) (token string, err error)
	Resolve(ctx context.Context, token string) (userID string, err error)
	Destroy(ctx context.Context, token string) error
}

const sessionKeyPrefix = "session:"

// RedisSessionStore implements SessionManager backed by Redis with TTL
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store with the given TTL
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Create issues a new token for userID.
// Token format: whub_<base64url(32 random bytes)>
func (s *RedisSessionStore) Create(ctx context.Context, userID string) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := "whub_" + base64.RawURLEncoding.EncodeToString(randomBytes)

	if err := s.client.Set(ctx, sessionKeyPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}
	return token, nil
}

// Resolve returns the user id for a token, or an unauthenticated error for
// unknown and expired tokens alike.
func (s *RedisSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", apperr.Unauthenticated()
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	return userID, nil
}

// Destroy invalidates a token. Destroying an unknown token is not an error.
func (s *RedisSessionStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
