package recycle

import (
	"context"

	"github.com/rhesis-ai/rhesis-backend/lifecycle"
	"github.com/rhesis-ai/rhesis-backend/sietch"
)

// Manager is the type-erased view of a lifecycle.Service. Items are
// returned as pointers to the concrete entity.
type Manager interface {
	Name() string
	Get(ctx context.Context, scope lifecycle.Scope, id string) (any, error)
	GetIncludingDeleted(ctx context.Context, scope lifecycle.Scope, id string) (any, error)
	List(ctx context.Context, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error)
	SoftDelete(ctx context.Context, scope lifecycle.Scope, id string) (any, error)
	Restore(ctx context.Context, scope lifecycle.Scope, id string) (any, error)
	HardDelete(ctx context.Context, scope lifecycle.Scope, id string, confirm bool) error
	ListDeleted(ctx context.Context, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error)
	CountDeleted(ctx context.Context, scope lifecycle.Scope) (int64, error)
	PurgeDeleted(ctx context.Context, scope lifecycle.Scope, confirm bool) (int, error)
	SoftDeleteWhere(ctx context.Context, scope lifecycle.Scope, conds ...sietch.Condition) (int, error)
	RestoreWhere(ctx context.Context, scope lifecycle.Scope, conds ...sietch.Condition) (int, error)
}

type adapter[T any] struct {
	svc *lifecycle.Service[T]
}

// Adapt exposes svc as a Manager
func Adapt[T any](svc *lifecycle.Service[T]) Manager {
	return &adapter[T]{svc: svc}
}

func pointers[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func (a *adapter[T]) Name() string { return a.svc.Name() }

func (a *adapter[T]) Get(ctx context.Context, scope lifecycle.Scope, id string) (any, error) {
	item, err := a.svc.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *adapter[T]) GetIncludingDeleted(ctx context.Context, scope lifecycle.Scope, id string) (any, error) {
	item, err := a.svc.GetIncludingDeleted(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *adapter[T]) List(ctx context.Context, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error) {
	items, total, err := a.svc.List(ctx, scope, page)
	if err != nil {
		return nil, 0, err
	}
	return pointers(items), total, nil
}

func (a *adapter[T]) SoftDelete(ctx context.Context, scope lifecycle.Scope, id string) (any, error) {
	item, err := a.svc.SoftDelete(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *adapter[T]) Restore(ctx context.Context, scope lifecycle.Scope, id string) (any, error) {
	item, err := a.svc.Restore(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *adapter[T]) HardDelete(ctx context.Context, scope lifecycle.Scope, id string, confirm bool) error {
	return a.svc.HardDelete(ctx, scope, id, confirm)
}

func (a *adapter[T]) ListDeleted(ctx context.Context, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error) {
	items, total, err := a.svc.ListDeleted(ctx, scope, page)
	if err != nil {
		return nil, 0, err
	}
	return pointers(items), total, nil
}

func (a *adapter[T]) CountDeleted(ctx context.Context, scope lifecycle.Scope) (int64, error) {
	return a.svc.CountDeleted(ctx, scope)
}

func (a *adapter[T]) PurgeDeleted(ctx context.Context, scope lifecycle.Scope, confirm bool) (int, error) {
	return a.svc.PurgeDeleted(ctx, scope, confirm)
}

func (a *adapter[T]) SoftDeleteWhere(ctx context.Context, scope lifecycle.Scope, conds ...sietch.Condition) (int, error) {
	return a.svc.SoftDeleteWhere(ctx, scope, conds...)
}

func (a *adapter[T]) RestoreWhere(ctx context.Context, scope lifecycle.Scope, conds ...sietch.Condition) (int, error) {
	return a.svc.RestoreWhere(ctx, scope, conds...)
}
