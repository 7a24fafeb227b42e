package sietch

import (
	"context"
	"fmt"
	"time"
)

// CacheStrategy defines how caching should behave
type CacheStrategy string

const (
	// CacheStrategyWriteThrough writes to both cache and base storage synchronously
	CacheStrategyWriteThrough CacheStrategy = "write_through"

	// CacheStrategyWriteAround writes only to base storage, invalidates cache
	CacheStrategyWriteAround CacheStrategy = "write_around"
)

// CachedRepository wraps a base repository with a caching layer for Get.
// The cache stores entities whatever their deletion state; every hit is
// re-checked against the soft-delete mode of the read.
type CachedRepository[T any, ID comparable] struct {
	base     Repository[T, ID] // primary data source (Postgres)
	cache    Repository[T, ID] // cache layer (Redis)
	ttl      time.Duration
	strategy CacheStrategy
	pk       column
}

// NewCachedRepository creates a write-through cached repository
func NewCachedRepository[T any, ID comparable](
	base Repository[T, ID],
	cache Repository[T, ID],
	ttl time.Duration,
) *CachedRepository[T, ID] {
	return NewCachedRepositoryWithStrategy(base, cache, ttl, CacheStrategyWriteThrough)
}

// NewCachedRepositoryWithStrategy creates a cached repository with a specific strategy
func NewCachedRepositoryWithStrategy[T any, ID comparable](
	base Repository[T, ID],
	cache Repository[T, ID],
	ttl time.Duration,
	strategy CacheStrategy,
) *CachedRepository[T, ID] {
	cols, err := structColumns[T]()
	if err != nil {
		panic(fmt.Sprintf("sietch: cached repository: %v", err))
	}
	return &CachedRepository[T, ID]{
		base:     base,
		cache:    cache,
		ttl:      ttl,
		strategy: strategy,
		pk:       cols[0],
	}
}

// Get tries cache first, falls back to base on cache miss. Inside a
// transaction the cache is neither read nor filled: the transaction may see
// rows that are not committed yet.
func (r *CachedRepository[T, ID]) Get(ctx context.Context, id ID, opts ...GetOption) (*T, error) {
	mode := resolveGetMode(ctx, opts)
	tx := inTx(ctx)

	if !tx {
		if item, err := r.cache.Get(ctx, id, IncludingDeleted()); err == nil {
			if !visible(mode, item) {
				return nil, ErrItemNotFound
			}
			return item, nil
		}
	}

	item, err := r.base.Get(ctx, id, IncludingDeleted())
	if err != nil {
		return nil, err
	}
	if !tx {
		_ = r.cache.Upsert(ctx, item)
	}

	if !visible(mode, item) {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// refresh keeps the cache in line with a successful base write. Writes
// made inside a transaction only evict, once it has ended.
func (r *CachedRepository[T, ID]) refresh(ctx context.Context, item *T) {
	if r.strategy == CacheStrategyWriteThrough && !inTx(ctx) {
		_ = r.cache.Upsert(ctx, item)
		return
	}
	r.evict(ctx, r.idOf(item))
}

// evict drops ids from the cache, after the enclosing transaction if any
func (r *CachedRepository[T, ID]) evict(ctx context.Context, ids ...ID) {
	if len(ids) == 0 {
		return
	}
	ids = append([]ID(nil), ids...)
	afterTx(ctx, func(ctx context.Context) {
		_ = r.cache.BatchDelete(ctx, ids)
	})
}

func (r *CachedRepository[T, ID]) idOf(item *T) ID {
	id, _ := fieldValue(item, r.pk).Interface().(ID)
	return id
}

// Create creates in base and manages cache based on strategy
func (r *CachedRepository[T, ID]) Create(ctx context.Context, item *T) error {
	if err := r.base.Create(ctx, item); err != nil {
		return err
	}
	switch {
	case inTx(ctx):
		r.evict(ctx, r.idOf(item))
	case r.strategy == CacheStrategyWriteThrough:
		_ = r.cache.Upsert(ctx, item)
	}
	return nil
}

// Update updates in base and refreshes the cached copy, soft deletion and
// restoration included
func (r *CachedRepository[T, ID]) Update(ctx context.Context, item *T) error {
	if err := r.base.Update(ctx, item); err != nil {
		return err
	}
	r.refresh(ctx, item)
	return nil
}

// Delete deletes from base and invalidates cache
func (r *CachedRepository[T, ID]) Delete(ctx context.Context, id ID) error {
	if err := r.base.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

// Query delegates to base
func (r *CachedRepository[T, ID]) Query(ctx context.Context, q *Query) ([]T, error) {
	return r.base.Query(ctx, q)
}

// Count delegates to base
func (r *CachedRepository[T, ID]) Count(ctx context.Context, q *Query) (int64, error) {
	return r.base.Count(ctx, q)
}

// BatchCreate creates in base and manages cache
func (r *CachedRepository[T, ID]) BatchCreate(ctx context.Context, items []T) error {
	if err := r.base.BatchCreate(ctx, items); err != nil {
		return err
	}
	switch {
	case inTx(ctx):
		for i := range items {
			r.evict(ctx, r.idOf(&items[i]))
		}
	case r.strategy == CacheStrategyWriteThrough:
		_ = r.cache.BatchCreate(ctx, items)
	}
	return nil
}

// BatchDelete deletes from base and invalidates cache entries
func (r *CachedRepository[T, ID]) BatchDelete(ctx context.Context, ids []ID) error {
	if err := r.base.BatchDelete(ctx, ids); err != nil {
		return err
	}
	r.evict(ctx, ids...)
	return nil
}

// Exists checks base (cache might have stale data)
func (r *CachedRepository[T, ID]) Exists(ctx context.Context, id ID, opts ...GetOption) (bool, error) {
	return r.base.Exists(ctx, id, opts...)
}

// Upsert upserts in base and manages cache
func (r *CachedRepository[T, ID]) Upsert(ctx context.Context, item *T) error {
	if err := r.base.Upsert(ctx, item); err != nil {
		return err
	}
	r.refresh(ctx, item)
	return nil
}

// WithTx runs fn against the base repository inside its transaction. The
// cache is bypassed for the whole call and entries touched by fn are
// evicted once the outermost transaction has ended, committed or not.
func (r *CachedRepository[T, ID]) WithTx(ctx context.Context, fn TxFunc[T, ID]) error {
	ctx, scope, owned := enterTxScope(ctx)
	if owned {
		defer scope.end(ctx)
	}

	touched := &evictingRepository[T, ID]{idOf: r.idOf}
	err := RunInTx(ctx, r.base, func(ctx context.Context, repo Repository[T, ID]) error {
		touched.Repository = repo
		return fn(ctx, touched)
	})
	r.evict(ctx, touched.ids...)
	return err
}

// evictingRepository records the ids written through it
type evictingRepository[T any, ID comparable] struct {
	Repository[T, ID]
	idOf func(*T) ID
	ids  []ID
}

func (e *evictingRepository[T, ID]) Create(ctx context.Context, item *T) error {
	e.ids = append(e.ids, e.idOf(item))
	return e.Repository.Create(ctx, item)
}

func (e *evictingRepository[T, ID]) Update(ctx context.Context, item *T) error {
	e.ids = append(e.ids, e.idOf(item))
	return e.Repository.Update(ctx, item)
}

func (e *evictingRepository[T, ID]) Upsert(ctx context.Context, item *T) error {
	e.ids = append(e.ids, e.idOf(item))
	return e.Repository.Upsert(ctx, item)
}

func (e *evictingRepository[T, ID]) Delete(ctx context.Context, id ID) error {
	e.ids = append(e.ids, id)
	return e.Repository.Delete(ctx, id)
}

func (e *evictingRepository[T, ID]) BatchDelete(ctx context.Context, ids []ID) error {
	e.ids = append(e.ids, ids...)
	return e.Repository.BatchDelete(ctx, ids)
}

func (e *evictingRepository[T, ID]) BatchCreate(ctx context.Context, items []T) error {
	for i := range items {
		e.ids = append(e.ids, e.idOf(&items[i]))
	}
	return e.Repository.BatchCreate(ctx, items)
}
