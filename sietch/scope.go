package sietch

import "context"

// softDeleteKey is the context key carrying the soft-delete filter override
type softDeleteKey struct{}

// IncludeDeleted returns a context under which reads that did not choose a
// mode themselves see soft-deleted rows too.
func IncludeDeleted(ctx context.Context) context.Context {
	return context.WithValue(ctx, softDeleteKey{}, true)
}

// ExcludeDeleted returns a context that re-enables default filtering,
// shadowing any enclosing IncludeDeleted.
func ExcludeDeleted(ctx context.Context) context.Context {
	return context.WithValue(ctx, softDeleteKey{}, false)
}

// SoftDeleteFilterDisabled reports whether the automatic filter is off in ctx
func SoftDeleteFilterDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(softDeleteKey{}).(bool)
	return disabled
}

// WithoutSoftDeleteFilter runs fn with automatic filtering disabled. The
// override lives in the context handed to fn only, so it ends when fn
// returns (or panics) and never leaks to concurrent callers.
func WithoutSoftDeleteFilter(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(IncludeDeleted(ctx))
}

// WithSoftDeleteFilter runs fn with automatic filtering enabled, even inside
// an enclosing WithoutSoftDeleteFilter.
func WithSoftDeleteFilter(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ExcludeDeleted(ctx))
}
