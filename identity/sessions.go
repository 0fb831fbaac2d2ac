package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession signals that no live session backs the presented token.
var ErrNoSession = errors.New("identity: no active session")

// SessionRegistry tracks live sessions server-side so sign-out revokes them.
type SessionRegistry interface {
	Put(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "session:"

// RedisSessions implements SessionRegistry on a Redis client. Entries expire
// with the session itself, so the registry never needs sweeping.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions wires a Redis-backed session registry.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

// Put registers a session with a TTL matching its expiry.
func (r *RedisSessions) Put(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("identity: session already expired")
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+sess.ID, sess.IdentityID, ttl).Err(); err != nil {
		return fmt.Errorf("identity: register session: %w", err)
	}
	return nil
}

// Get returns the live session for id, or ErrNoSession.
func (r *RedisSessions) Get(ctx context.Context, id string) (Session, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, sessionKeyPrefix+id)
	ttlCmd := pipe.TTL(ctx, sessionKeyPrefix+id)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("identity: lookup session: %w", err)
	}

	return Session{
		ID:         id,
		IdentityID: getCmd.Val(),
		ExpiresAt:  time.Now().Add(ttlCmd.Val()),
	}, nil
}

// Delete removes a session. Deleting a session that does not exist is not an
// error.
func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("identity: delete session: %w", err)
	}
	return nil
}
