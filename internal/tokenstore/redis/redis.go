// Package redis stores credentials in Redis for shared kiosk devices.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/fieldsales/pkg/database"
)

// DefaultKeyPrefix namespaces the credential keys.
const DefaultKeyPrefix = "fieldsales:session:"

// Backend implements tokenstore.Backend on a Redis client.
type Backend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Backend. A zero ttl keeps keys until cleared.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Backend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Backend{client: client, prefix: prefix, ttl: ttl}
}

func (b *Backend) key(k string) string { return b.prefix + k }

func (b *Backend) Get(ctx context.Context, key string) (_ string, _ bool, err error) {
	ctx, end := database.TraceCommand(ctx, "GET", b.key(key))
	defer func() { end(err) }()

	v, err := b.client.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// SetAll writes every pair inside one MULTI/EXEC transaction.
func (b *Backend) SetAll(ctx context.Context, values map[string]string) (err error) {
	ctx, end := database.TraceCommand(ctx, "MULTI", b.prefix+"*")
	defer func() { end(err) }()

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, b.key(k), v, b.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	ctx, end := database.TraceCommand(ctx, "DEL", b.prefix+"*")
	defer func() { end(err) }()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	if err = b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del credential: %w", err)
	}
	return nil
}
