package sietch

import (
	"context"
	"fmt"
	"sync"
)

// undoKey scopes an undo log to one connector
type undoKey struct{ conn any }

// undoLog keeps the committed value of every key a transaction writes. A nil
// value means the key did not exist.
type undoLog[T any, ID comparable] struct {
	mu     sync.Mutex
	prior  map[ID]*T
	parent *undoLog[T, ID]
}

func (l *undoLog[T, ID]) record(id ID, current *T) {
	for ; l != nil; l = l.parent {
		l.mu.Lock()
		if _, seen := l.prior[id]; !seen {
			var prior *T
			if current != nil {
				prior = copyOf(current)
			}
			l.prior[id] = prior
		}
		l.mu.Unlock()
	}
}

// journal records the value of id before a write made with ctx. Caller must
// hold the write lock.
func (r *InMemoryConnector[T, ID]) journal(ctx context.Context, id ID) {
	if l, ok := ctx.Value(undoKey{r}).(*undoLog[T, ID]); ok {
		l.record(id, r.data[id])
	}
}

// WithTx executes the given function within a transaction simulation.
// Writes made with the context handed to fn are journaled; an error or a
// panic puts the journaled keys back, leaving writes of concurrent callers
// alone. Success keeps the changes.
func (r *InMemoryConnector[T, ID]) WithTx(ctx context.Context, fn TxFunc[T, ID]) error {
	parent, _ := ctx.Value(undoKey{r}).(*undoLog[T, ID])
	log := &undoLog[T, ID]{prior: make(map[ID]*T), parent: parent}
	ctx = context.WithValue(ctx, undoKey{r}, log)

	ctx, scope, owned := enterTxScope(ctx)
	if owned {
		defer scope.end(ctx)
	}

	rollback := func() {
		log.mu.Lock()
		undo := log.prior
		log.prior = make(map[ID]*T)
		log.mu.Unlock()

		r.mu.Lock()
		defer r.mu.Unlock()
		for id, prior := range undo {
			if prior == nil {
				delete(r.data, id)
			} else {
				r.data[id] = prior
			}
		}
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, r); err != nil {
		rollback()
		return fmt.Errorf("tx error: %w", err)
	}
	return nil
}
