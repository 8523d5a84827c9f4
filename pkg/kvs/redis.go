package kvs

import (
	"context"
	"fmt"
)

// stateClient is the slice of pkg/redis.Client the store depends on.
type stateClient interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	DeleteState(ctx context.Context, keys ...string) error
}

// RedisStore keeps values in redis under the client's namespace.
type RedisStore struct {
	client stateClient
}

func NewRedisStore(client stateClient) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, found, err := r.client.GetState(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, found, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.SetState(ctx, key, value); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if err := r.client.DeleteState(ctx, keys...); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
