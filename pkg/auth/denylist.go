package auth

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Denylist records revoked refresh tokens by their jti until they expire.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const denylistPrefix = "denylist:refresh:"

type redisDenylist struct {
	client redis.UniversalClient
}

func NewRedisDenylist(client redis.UniversalClient) Denylist {
	return &redisDenylist{client: client}
}

func (d *redisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

type memoryDenylist struct {
	cache *gocache.Cache
}

// NewMemoryDenylist keeps revocations in process; they do not survive restarts.
func NewMemoryDenylist(cleanupInterval time.Duration) Denylist {
	return &memoryDenylist{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (d *memoryDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.cache.Set(jti, struct{}{}, ttl)
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, found := d.cache.Get(jti)
	return found, nil
}
