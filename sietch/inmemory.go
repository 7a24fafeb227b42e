package sietch

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// InMemoryConnector in-memory implementation of the Repository interface.
// Items are copied on the way in and out so callers never share storage.
type InMemoryConnector[T any, ID comparable] struct {
	instrumentation[T, ID]
	data  map[ID]*T
	mu    sync.RWMutex
	getID func(t *T) ID // function to extract an element ID
	eval  *evaluator[T]
}

// NewInMemoryConnector creates an in-memory repository. T must be a struct
// with `db` tags; the tags name the fields usable in filters and ordering.
func NewInMemoryConnector[T any, ID comparable](getID func(t *T) ID) *InMemoryConnector[T, ID] {
	eval, err := newEvaluator[T]()
	if err != nil {
		panic(fmt.Sprintf("sietch: in-memory connector: %v", err))
	}
	return &InMemoryConnector[T, ID]{
		instrumentation: newInstrumentation[T, ID](reflect.TypeOf((*T)(nil)).Elem().Name()),
		data:            make(map[ID]*T),
		getID:           getID,
		eval:            eval,
	}
}

func copyOf[T any](item *T) *T {
	c := *item
	return &c
}

func (r *InMemoryConnector[T, ID]) Create(ctx context.Context, item *T) (err error) {
	start := time.Now()
	defer func() { r.logOperation(ctx, "Create", start, err) }()

	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if err = r.hooks.ExecuteBeforeCreate(ctx, item); err != nil {
		return err
	}

	r.mu.Lock()
	id := r.getID(item)
	if _, exists := r.data[id]; exists {
		r.mu.Unlock()
		return ErrItemAlreadyExists
	}
	r.journal(ctx, id)
	r.data[id] = copyOf(item)
	r.mu.Unlock()

	_ = r.hooks.ExecuteAfterCreate(ctx, item)
	return nil
}

func (r *InMemoryConnector[T, ID]) Get(ctx context.Context, id ID, opts ...GetOption) (*T, error) {
	mode := resolveGetMode(ctx, opts)

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.data[id]
	if !exists || !visible(mode, item) {
		return nil, ErrItemNotFound
	}

	return copyOf(item), nil
}

func (r *InMemoryConnector[T, ID]) BatchCreate(ctx context.Context, items []T) error {
	for i := range items {
		if err := r.Create(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// selectLocked returns the rows matching the effective query, ordered but
// not paginated. Caller must hold the read lock.
func (r *InMemoryConnector[T, ID]) selectLocked(eff *Query) []*T {
	var rows []*T
	for _, item := range r.data {
		if r.eval.matches(item, eff.Filter) {
			rows = append(rows, item)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if less, decided := r.eval.less(rows[i], rows[j], eff.Orders); decided {
			return less
		}
		return fmt.Sprint(r.getID(rows[i])) < fmt.Sprint(r.getID(rows[j]))
	})
	return rows
}

// effective runs the query hooks and injects the soft-delete predicate
func (r *InMemoryConnector[T, ID]) effective(ctx context.Context, q *Query) (*Query, error) {
	if q == nil {
		q = NewQuery()
	}
	hooked, err := r.hooks.ExecuteBeforeQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	eff := ApplySoftDeleteFilter[T](ctx, hooked)
	if err := r.eval.validate(eff.Filter); err != nil {
		return nil, err
	}
	for _, o := range eff.Orders {
		if _, ok := r.eval.columns[o.Field]; !ok {
			return nil, fmt.Errorf("%w: unknown order field %q", ErrInvalidFilter, o.Field)
		}
	}
	return eff, nil
}

// Query filters first, then orders, then applies offset and limit
func (r *InMemoryConnector[T, ID]) Query(ctx context.Context, q *Query) (results []T, err error) {
	start := time.Now()
	defer func() { r.logOperation(ctx, "Query", start, err) }()

	eff, err := r.effective(ctx, q)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	rows := r.selectLocked(eff)
	rows = paginate(rows, eff.Offset, eff.Limit)
	results = make([]T, 0, len(rows))
	for _, item := range rows {
		results = append(results, *item)
	}
	r.mu.RUnlock()

	_ = r.hooks.ExecuteAfterQuery(ctx, results)
	return results, nil
}

func paginate[E any](rows []E, offset, limit int) []E {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Count ignores the pagination of q
func (r *InMemoryConnector[T, ID]) Count(ctx context.Context, q *Query) (int64, error) {
	eff, err := r.effective(ctx, q)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, item := range r.data {
		if r.eval.matches(item, eff.Filter) {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryConnector[T, ID]) Update(ctx context.Context, item *T) (err error) {
	start := time.Now()
	defer func() { r.logOperation(ctx, "Update", start, err) }()

	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if err = r.hooks.ExecuteBeforeUpdate(ctx, item); err != nil {
		return err
	}

	r.mu.Lock()
	id := r.getID(item)
	if _, exists := r.data[id]; !exists {
		r.mu.Unlock()
		return ErrNoUpdateItem
	}
	r.journal(ctx, id)
	r.data[id] = copyOf(item)
	r.mu.Unlock()

	_ = r.hooks.ExecuteAfterUpdate(ctx, item)
	return nil
}

// Delete removes the item physically, whatever its deletion state
func (r *InMemoryConnector[T, ID]) Delete(ctx context.Context, id ID) (err error) {
	start := time.Now()
	defer func() { r.logOperation(ctx, "Delete", start, err) }()

	if err = r.hooks.ExecuteBeforeDelete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.data[id]; !exists {
		r.mu.Unlock()
		return ErrNoDeleteItem
	}
	r.journal(ctx, id)
	delete(r.data, id)
	r.mu.Unlock()

	_ = r.hooks.ExecuteAfterDelete(ctx, id)
	return nil
}

func (r *InMemoryConnector[T, ID]) BatchDelete(ctx context.Context, ids []ID) error {
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryConnector[T, ID]) Exists(ctx context.Context, id ID, opts ...GetOption) (bool, error) {
	_, err := r.Get(ctx, id, opts...)
	if err == ErrItemNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *InMemoryConnector[T, ID]) Upsert(ctx context.Context, item *T) error {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	r.mu.RLock()
	_, exists := r.data[r.getID(item)]
	r.mu.RUnlock()

	if exists {
		return r.Update(ctx, item)
	}
	return r.Create(ctx, item)
}

// Len returns the number of stored rows, soft-deleted ones included
func (r *InMemoryConnector[T, ID]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
