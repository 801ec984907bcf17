package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist remembers revoked token ids until the tokens would have
// expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "session:revoked:"

type redisDenylist struct {
	rdb redis.UniversalClient
}

func NewRedisDenylist(rdb redis.UniversalClient) TokenDenylist {
	return &redisDenylist{rdb: rdb}
}

func (d *redisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (d *redisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// memoryDenylist is the single-process fallback when no Redis is configured.
type memoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     Clock
}

func NewMemoryDenylist() TokenDenylist {
	return &memoryDenylist{entries: map[string]time.Time{}, now: time.Now}
}

func (d *memoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, id)
		}
	}
	if until.After(now) {
		d.entries[tokenID] = until
	}
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.entries[tokenID]
	return ok && exp.After(d.now()), nil
}
