package sietch

import (
	"context"
	"time"
)

// Hook defines lifecycle callbacks for repository operations
// Implementations can intercept and react to repository events
type Hook[T any, ID comparable] interface {
	// BeforeCreate is called before creating a new entity
	// Return error to abort the operation
	BeforeCreate(ctx context.Context, item *T) error

	// AfterCreate is called after successfully creating an entity
	// Errors are logged but don't affect the operation result
	AfterCreate(ctx context.Context, item *T) error

	// BeforeUpdate is called before updating an entity, soft deletion and
	// restoration included
	BeforeUpdate(ctx context.Context, item *T) error

	// AfterUpdate is called after successfully updating an entity
	AfterUpdate(ctx context.Context, item *T) error

	// BeforeDelete is called before physically deleting an entity
	BeforeDelete(ctx context.Context, id ID) error

	// AfterDelete is called after physically deleting an entity
	AfterDelete(ctx context.Context, id ID) error

	// BeforeQuery is called with a copy of the caller query before the
	// soft-delete predicate is injected. It may add conditions; the deletion
	// mode chosen by the caller is kept.
	BeforeQuery(ctx context.Context, q *Query) error

	// AfterQuery is called after successfully executing a query
	AfterQuery(ctx context.Context, results []T) error
}

// BaseHook provides a default implementation of Hook interface
// Embed this in custom hooks to only implement needed methods
type BaseHook[T any, ID comparable] struct{}

func (h *BaseHook[T, ID]) BeforeCreate(ctx context.Context, item *T) error { return nil }
func (h *BaseHook[T, ID]) AfterCreate(ctx context.Context, item *T) error  { return nil }
func (h *BaseHook[T, ID]) BeforeUpdate(ctx context.Context, item *T) error { return nil }
func (h *BaseHook[T, ID]) AfterUpdate(ctx context.Context, item *T) error  { return nil }
func (h *BaseHook[T, ID]) BeforeDelete(ctx context.Context, id ID) error   { return nil }
func (h *BaseHook[T, ID]) AfterDelete(ctx context.Context, id ID) error    { return nil }
func (h *BaseHook[T, ID]) BeforeQuery(ctx context.Context, q *Query) error { return nil }
func (h *BaseHook[T, ID]) AfterQuery(ctx context.Context, results []T) error {
	return nil
}

// Timestamped is implemented by entities carrying creation and update times
type Timestamped interface {
	SetCreatedAt(t time.Time)
	SetUpdatedAt(t time.Time)
}

// TimestampHook stamps created_at / updated_at on entities implementing Timestamped
type TimestampHook[T any, ID comparable] struct {
	BaseHook[T, ID]
	Now func() time.Time
}

func (h *TimestampHook[T, ID]) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *TimestampHook[T, ID]) BeforeCreate(_ context.Context, item *T) error {
	if ts, ok := any(item).(Timestamped); ok {
		now := h.now()
		ts.SetCreatedAt(now)
		ts.SetUpdatedAt(now)
	}
	return nil
}

func (h *TimestampHook[T, ID]) BeforeUpdate(_ context.Context, item *T) error {
	if ts, ok := any(item).(Timestamped); ok {
		ts.SetUpdatedAt(h.now())
	}
	return nil
}

// HookRegistry manages a collection of hooks
type HookRegistry[T any, ID comparable] struct {
	hooks []Hook[T, ID]
}

// NewHookRegistry creates a new hook registry
func NewHookRegistry[T any, ID comparable]() *HookRegistry[T, ID] {
	return &HookRegistry[T, ID]{
		hooks: make([]Hook[T, ID], 0),
	}
}

// AddHook registers a new hook
func (r *HookRegistry[T, ID]) AddHook(hook Hook[T, ID]) {
	r.hooks = append(r.hooks, hook)
}

// RemoveAllHooks clears all registered hooks
func (r *HookRegistry[T, ID]) RemoveAllHooks() {
	r.hooks = make([]Hook[T, ID], 0)
}

// runBefore stops at the first failing hook
func runBefore[T any, ID comparable](hooks []Hook[T, ID], call func(Hook[T, ID]) error) error {
	for _, hook := range hooks {
		if err := call(hook); err != nil {
			return err
		}
	}
	return nil
}

// runAfter runs every hook and keeps the first error
func runAfter[T any, ID comparable](hooks []Hook[T, ID], call func(Hook[T, ID]) error) error {
	var firstErr error
	for _, hook := range hooks {
		if err := call(hook); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *HookRegistry[T, ID]) ExecuteBeforeCreate(ctx context.Context, item *T) error {
	return runBefore(r.hooks, func(h Hook[T, ID]) error { return h.BeforeCreate(ctx, item) })
}

func (r *HookRegistry[T, ID]) ExecuteAfterCreate(ctx context.Context, item *T) error {
	return runAfter(r.hooks, func(h Hook[T, ID]) error { return h.AfterCreate(ctx, item) })
}

func (r *HookRegistry[T, ID]) ExecuteBeforeUpdate(ctx context.Context, item *T) error {
	return runBefore(r.hooks, func(h Hook[T, ID]) error { return h.BeforeUpdate(ctx, item) })
}

func (r *HookRegistry[T, ID]) ExecuteAfterUpdate(ctx context.Context, item *T) error {
	return runAfter(r.hooks, func(h Hook[T, ID]) error { return h.AfterUpdate(ctx, item) })
}

func (r *HookRegistry[T, ID]) ExecuteBeforeDelete(ctx context.Context, id ID) error {
	return runBefore(r.hooks, func(h Hook[T, ID]) error { return h.BeforeDelete(ctx, id) })
}

func (r *HookRegistry[T, ID]) ExecuteAfterDelete(ctx context.Context, id ID) error {
	return runAfter(r.hooks, func(h Hook[T, ID]) error { return h.AfterDelete(ctx, id) })
}

// ExecuteBeforeQuery runs BeforeQuery hooks on a copy of q
func (r *HookRegistry[T, ID]) ExecuteBeforeQuery(ctx context.Context, q *Query) (*Query, error) {
	if len(r.hooks) == 0 {
		return q, nil
	}
	hooked := q.Clone()
	if err := runBefore(r.hooks, func(h Hook[T, ID]) error { return h.BeforeQuery(ctx, hooked) }); err != nil {
		return nil, err
	}
	hooked.Deleted = q.Deleted
	return hooked, nil
}

func (r *HookRegistry[T, ID]) ExecuteAfterQuery(ctx context.Context, results []T) error {
	return runAfter(r.hooks, func(h Hook[T, ID]) error { return h.AfterQuery(ctx, results) })
}

// Hookable is an optional interface that repositories can implement to support hooks
type Hookable[T any, ID comparable] interface {
	// AddHook registers a hook with the repository
	AddHook(hook Hook[T, ID])

	// RemoveAllHooks clears all hooks
	RemoveAllHooks()
}
