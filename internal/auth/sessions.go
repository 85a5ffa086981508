package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions is the server-side session registry. A token is only honored
// while its registry entry exists, so logout revokes immediately instead of
// waiting for JWT expiry.
type Sessions struct {
	client *redis.Client
	prefix string
}

// NewSessions creates a registry in redis.
func NewSessions(client *redis.Client) *Sessions {
	return &Sessions{client: client, prefix: "checkin:session:"}
}

// Create registers a session until its TTL elapses.
func (s *Sessions) Create(ctx context.Context, sessionID, username string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+sessionID, username, ttl).Err()
}

// Active reports whether a session is still registered. Redis being down
// fails closed.
func (s *Sessions) Active(ctx context.Context, sessionID string) bool {
	_, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	return err == nil
}

// Revoke drops a session on logout.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
