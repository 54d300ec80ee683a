package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/extra/redisotel/v9"
)

type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every key generated under operation.
	Invalidate(ctx context.Context, operation string) error
	GenerateKey(operation string, parts ...string) string
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(ctx context.Context, addr, serviceName string) (Cache, func() error, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("instrument redis: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &redisCache{client: client, serviceName: serviceName}, client.Close, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func (r *redisCache) Invalidate(ctx context.Context, operation string) error {
	iter := r.client.Scan(ctx, 0, r.GenerateKey(operation)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) GenerateKey(operation string, parts ...string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, strings.Join(parts, ":"))
}
