// Package idempotency rejects replayed checkout requests.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

func key(scope, k string) string {
	return fmt.Sprintf("idempotent-key:%s:%s", scope, k)
}

// Claim records k for scope. A key already claimed within the TTL fails with
// Conflict.
func (g *Guard) Claim(ctx context.Context, scope, k string) error {
	ok, err := g.rdb.SetNX(ctx, key(scope, k), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if !ok {
		return domain.Errorf(domain.KindConflict, "request with idempotency key %q was already processed", k)
	}
	return nil
}

// Forget drops a claim so a failed request can be retried with the same key.
func (g *Guard) Forget(ctx context.Context, scope, k string) error {
	if err := g.rdb.Del(ctx, key(scope, k)).Err(); err != nil {
		return fmt.Errorf("forget idempotency key: %w", err)
	}
	return nil
}
