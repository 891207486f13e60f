// Package cache is a Redis-backed read-through cache for invite lookups.
// Invite details never change after creation, so entries only need a TTL
// matching the invite's expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/globetrotter/internal/model"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache: miss")

const keyPrefix = "globetrotter:invite:"

// Connect parses rawURL, opens a client and pings it.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// Invites caches InviteDetails by invite code.
type Invites struct {
	client redis.Cmdable
}

func NewInvites(client redis.Cmdable) *Invites {
	return &Invites{client: client}
}

func inviteKey(code string) string { return keyPrefix + code }

// Get returns the cached details for code, or ErrMiss.
func (c *Invites) Get(ctx context.Context, code string) (*model.InviteDetails, error) {
	b, err := c.client.Get(ctx, inviteKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var d model.InviteDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode cached invite: %w", err)
	}
	return &d, nil
}

// Set stores d for ttl. Non-positive TTLs are ignored.
func (c *Invites) Set(ctx context.Context, d *model.InviteDetails, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode invite: %w", err)
	}
	if err := c.client.Set(ctx, inviteKey(d.Invite.Code), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Checker adapts a Redis client to a health check.
type Checker struct{ Client redis.Cmdable }

func (c Checker) Check(ctx context.Context) error { return c.Client.Ping(ctx).Err() }
