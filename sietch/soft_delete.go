package sietch

import (
	"context"
	"time"
)

// DeletedAtField is the column holding the soft deletion timestamp
const DeletedAtField = "deleted_at"

// SoftDeletable is implemented by entities that are soft-deleted instead of
// physically removed. IsDeleted must be derived from the deletion timestamp.
type SoftDeletable interface {
	// IsDeleted returns true if the entity carries a deletion timestamp
	IsDeleted() bool

	// GetDeletedAt returns the timestamp when the entity was deleted
	GetDeletedAt() *time.Time

	// SetDeletedAt sets the deletion timestamp; nil restores the entity
	SetDeletedAt(deletedAt *time.Time)
}

// isSoftDeletable checks if type T implements SoftDeletable interface
func isSoftDeletable[T any]() bool {
	var zero T
	_, ok := any(&zero).(SoftDeletable)
	return ok
}

// MarkDeleted stamps the entity with the given deletion time
func MarkDeleted[T any](item *T, at time.Time) {
	if sd, ok := any(item).(SoftDeletable); ok {
		at = at.UTC()
		sd.SetDeletedAt(&at)
	}
}

// MarkRestored clears the deletion timestamp
func MarkRestored[T any](item *T) {
	if sd, ok := any(item).(SoftDeletable); ok {
		sd.SetDeletedAt(nil)
	}
}

// IsEntityDeleted checks if an entity is soft-deleted
func IsEntityDeleted[T any](item *T) bool {
	if sd, ok := any(item).(SoftDeletable); ok {
		return sd.IsDeleted()
	}
	return false
}

// ResolveDeletedMode picks the effective mode of a read. A mode set on the
// query wins over the context override, which wins over default exclusion.
func ResolveDeletedMode(ctx context.Context, requested DeletedMode) DeletedMode {
	if requested != DeletedModeDefault {
		return requested
	}
	if SoftDeleteFilterDisabled(ctx) {
		return DeletedModeInclude
	}
	return DeletedModeExclude
}

// ApplySoftDeleteFilter returns a copy of q whose predicate tree carries the
// deletion predicate for T, AND-combined with every caller filter. Ordering
// and pagination are left untouched so connectors compile them after the
// predicate. The returned query has a resolved (non-default) mode.
func ApplySoftDeleteFilter[T any](ctx context.Context, q *Query) *Query {
	out := q.Clone()
	out.Deleted = ResolveDeletedMode(ctx, out.Deleted)
	if !isSoftDeletable[T]() {
		return out
	}

	switch out.Deleted {
	case DeletedModeExclude:
		out.Filter = and(out.Filter, Condition{Field: DeletedAtField, Operator: OpIsNull})
	case DeletedModeOnly:
		out.Filter = and(out.Filter, Condition{Field: DeletedAtField, Operator: OpIsNotNull})
	}
	return out
}

// visible reports whether an already-loaded item is visible under mode
func visible[T any](mode DeletedMode, item *T) bool {
	deleted := IsEntityDeleted(item)
	switch mode {
	case DeletedModeInclude:
		return true
	case DeletedModeOnly:
		return deleted
	default:
		return !deleted
	}
}

// GetOption tunes single-entity lookups
type GetOption func(*getOptions)

type getOptions struct {
	mode DeletedMode
}

// IncludingDeleted makes Get return the entity even when it is soft-deleted
func IncludingDeleted() GetOption {
	return func(o *getOptions) {
		o.mode = DeletedModeInclude
	}
}

// OnlyIfDeleted makes Get return the entity only when it is soft-deleted
func OnlyIfDeleted() GetOption {
	return func(o *getOptions) {
		o.mode = DeletedModeOnly
	}
}

func resolveGetMode(ctx context.Context, opts []GetOption) DeletedMode {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return ResolveDeletedMode(ctx, o.mode)
}
