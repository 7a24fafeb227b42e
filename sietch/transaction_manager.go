package sietch

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager manages database transactions across multiple repositories
type TransactionManager struct {
	pool *pgxpool.Pool
}

// MultiRepoTxFunc is a function that executes operations within a transaction context
// All operations should use the provided context which contains the active transaction
type MultiRepoTxFunc func(ctx context.Context) error

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	if pool == nil {
		panic("pool cannot be nil")
	}
	return &TransactionManager{pool: pool}
}

// WithTx executes the provided function within a transaction.
// Every PostgresConnector call made with the context handed to fn joins it.
// Nested calls reuse the outer transaction.
func (tm *TransactionManager) WithTx(ctx context.Context, fn MultiRepoTxFunc) error {
	return withTx(ctx, tm.pool, fn)
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn MultiRepoTxFunc) (err error) {
	if _, ok := getTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx, scope, owned := enterTxScope(ctx)
	if owned {
		defer scope.end(ctx)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txKey is the context key type for transaction injection
type txKey struct{}

// getTxFromContext extracts the transaction from context, if present
func getTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// txScope collects work that must wait until the outermost transaction of a
// call tree has committed or rolled back.
type txScope struct {
	mu    sync.Mutex
	after []func(context.Context)
}

type txScopeKey struct{}

// enterTxScope returns ctx carrying a transaction scope. owned is false when
// ctx already had one; its owner ends it.
func enterTxScope(ctx context.Context) (context.Context, *txScope, bool) {
	if s, ok := ctx.Value(txScopeKey{}).(*txScope); ok {
		return ctx, s, false
	}
	s := &txScope{}
	return context.WithValue(ctx, txScopeKey{}, s), s, true
}

// inTx reports whether ctx belongs to a running transaction
func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txScopeKey{}).(*txScope)
	return ok
}

// afterTx runs fn once the transaction of ctx has ended, or right away
// outside a transaction.
func afterTx(ctx context.Context, fn func(context.Context)) {
	if s, ok := ctx.Value(txScopeKey{}).(*txScope); ok {
		s.mu.Lock()
		s.after = append(s.after, fn)
		s.mu.Unlock()
		return
	}
	fn(ctx)
}

func (s *txScope) end(ctx context.Context) {
	s.mu.Lock()
	after := s.after
	s.after = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for _, fn := range after {
		fn(ctx)
	}
}
