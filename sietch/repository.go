package sietch

import "context"

// Repository defines a generic contract for CRUD operations
// T represents the entity type and ID the identifier type.
//
// Reads (Get, Query, Count, Exists) exclude soft-deleted rows of
// SoftDeletable entities unless the query, the Get options or the context
// say otherwise. Delete always removes the row physically.
type Repository[T any, ID comparable] interface {
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, id ID, opts ...GetOption) (*T, error)
	BatchCreate(ctx context.Context, items []T) error
	Query(ctx context.Context, q *Query) ([]T, error)
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id ID) error
	BatchDelete(ctx context.Context, ids []ID) error
	Count(ctx context.Context, q *Query) (int64, error)

	// Exists checks if a visible entity with the given ID exists
	Exists(ctx context.Context, id ID, opts ...GetOption) (bool, error)

	// Upsert creates a new entity or updates an existing one
	Upsert(ctx context.Context, item *T) error
}

// TxFunc is a function that operates within a transaction context.
// Operations must use the given context so they join the transaction.
type TxFunc[T any, ID comparable] func(ctx context.Context, repo Repository[T, ID]) error

// Transactional defines an optional interface for transaction support
// Implementations can use type assertion to check if a repository supports transactions:
//
//	if txRepo, ok := repo.(Transactional[T, ID]); ok { ... }
type Transactional[T any, ID comparable] interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function returns nil, the transaction is committed.
	// If the function panics, the transaction is rolled back and the panic is re-raised.
	WithTx(ctx context.Context, fn TxFunc[T, ID]) error
}

// RunInTx runs fn inside repo's transaction when it supports one, or
// directly otherwise.
func RunInTx[T any, ID comparable](ctx context.Context, repo Repository[T, ID], fn TxFunc[T, ID]) error {
	if tx, ok := repo.(Transactional[T, ID]); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(ctx, repo)
}
