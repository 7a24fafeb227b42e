package sietch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConnector stores entities as JSON values keyed by id. It supports
// key lookups only; Query and Count return ErrUnsupportedOperation.
type RedisConnector[T any, ID comparable] struct {
	client     *redis.Client
	defaultTTL time.Duration
	getID      func(*T) ID
	keyFunc    func(ID) string
}

func NewRedisConnector[T any, ID comparable](client *redis.Client, defaultTTL time.Duration, getID func(*T) ID, keyFunc func(ID) string) *RedisConnector[T, ID] {
	return &RedisConnector[T, ID]{client, defaultTTL, getID, keyFunc}
}

func (r *RedisConnector[T, ID]) Create(ctx context.Context, item *T) error {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	key := r.keyFunc(r.getID(item))
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.defaultTTL).Err()
}

// Get honours the soft-delete mode like the other connectors
func (r *RedisConnector[T, ID]) Get(ctx context.Context, id ID, opts ...GetOption) (*T, error) {
	data, err := r.client.Get(ctx, r.keyFunc(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	if !visible(resolveGetMode(ctx, opts), &item) {
		return nil, ErrItemNotFound
	}

	return &item, nil
}

func (r *RedisConnector[T, ID]) BatchCreate(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for i := range items {
		data, err := json.Marshal(&items[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, r.keyFunc(r.getID(&items[i])), data, r.defaultTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisConnector[T, ID]) Query(_ context.Context, _ *Query) ([]T, error) {
	return nil, ErrUnsupportedOperation
}

func (r *RedisConnector[T, ID]) Update(ctx context.Context, item *T) error {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	return r.Create(ctx, item)
}

func (r *RedisConnector[T, ID]) Delete(ctx context.Context, id ID) error {
	result, err := r.client.Del(ctx, r.keyFunc(id)).Result()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *RedisConnector[T, ID]) BatchDelete(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, r.keyFunc(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Count is not supported by Redis connector
func (r *RedisConnector[T, ID]) Count(_ context.Context, _ *Query) (int64, error) {
	return 0, ErrUnsupportedOperation
}

// Exists checks if a visible entity with the given ID is cached
func (r *RedisConnector[T, ID]) Exists(ctx context.Context, id ID, opts ...GetOption) (bool, error) {
	_, err := r.Get(ctx, id, opts...)
	if errors.Is(err, ErrItemNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Upsert is the same as Create since SET always upserts
func (r *RedisConnector[T, ID]) Upsert(ctx context.Context, item *T) error {
	return r.Create(ctx, item)
}
