package recycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/lifecycle"
	"github.com/rhesis-ai/rhesis-backend/sietch"
	"github.com/rhesis-ai/rhesis-backend/wp"
)

// MaxBulkIDs caps the ids accepted by one bulk restore
const MaxBulkIDs = 1000

// TxRunner runs fn in a transaction spanning every repository that joins
// through ctx. sietch.TransactionManager implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn sietch.MultiRepoTxFunc) error
}

type directRunner struct{}

func (directRunner) WithTx(ctx context.Context, fn sietch.MultiRepoTxFunc) error {
	return fn(ctx)
}

type Option func(*Service)

// WithTxRunner makes cascades atomic
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// WithPool fans bulk restores out on pool
func WithPool(pool *wp.Pool) Option {
	return func(s *Service) {
		s.pool = pool
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Service is the recycle bin over every registered entity type
type Service struct {
	registry *Registry
	tx       TxRunner
	pool     *wp.Pool
	log      *zap.Logger
}

func NewService(registry *Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		tx:       directRunner{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models lists the entity types managed by the recycle bin
func (s *Service) Models() []string {
	return s.registry.Names()
}

// Get returns an active entity, or lifecycle.ErrDeleted when it sits in the bin
func (s *Service) Get(ctx context.Context, typ string, scope lifecycle.Scope, id string) (any, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, scope, id)
}

// List returns a page of active entities
func (s *Service) List(ctx context.Context, typ string, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, 0, err
	}
	return m.List(ctx, scope, page)
}

// SoftDelete moves an entity and its cascading children to the bin
func (s *Service) SoftDelete(ctx context.Context, typ string, scope lifecycle.Scope, id string) (any, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, err
	}

	var item any
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if item, err = m.SoftDelete(ctx, scope, id); err != nil {
			return err
		}
		for _, c := range s.registry.cascadesOf(typ) {
			if !c.OnDelete {
				continue
			}
			n, err := s.cascade(ctx, c, scope, id, Manager.SoftDeleteWhere)
			if err != nil {
				return err
			}
			if n > 0 {
				s.log.Info("cascade soft delete",
					zap.String("parent", typ),
					zap.String("parent_id", id),
					zap.String("child", c.Child),
					zap.Int("count", n),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) cascade(
	ctx context.Context,
	c Cascade,
	scope lifecycle.Scope,
	parentID string,
	apply func(Manager, context.Context, lifecycle.Scope, ...sietch.Condition) (int, error),
) (int, error) {
	child, err := s.registry.Lookup(c.Child)
	if err != nil {
		return 0, err
	}
	n, err := apply(child, ctx, scope, sietch.Condition{Field: c.ForeignKey, Operator: sietch.OpEqual, Value: parentID})
	if err != nil {
		return 0, fmt.Errorf("cascade %s -> %s: %w", c.Parent, c.Child, err)
	}
	return n, nil
}

// ListDeleted returns a page of the bin for typ, most recently deleted first
func (s *Service) ListDeleted(ctx context.Context, typ string, scope lifecycle.Scope, page lifecycle.Page) ([]any, int64, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, 0, err
	}
	return m.ListDeleted(ctx, scope, page)
}

// RestoreResult is the restored entity and the children restored with it
type RestoreResult struct {
	Item     any            `json:"item"`
	Cascaded map[string]int `json:"cascaded,omitempty"`
}

// Restore takes an entity out of the bin together with the children that
// were deleted with it, in one transaction.
func (s *Service) Restore(ctx context.Context, typ string, scope lifecycle.Scope, id string) (*RestoreResult, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, err
	}

	var res *RestoreResult
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		item, err := m.Restore(ctx, scope, id)
		if err != nil {
			return err
		}
		res = &RestoreResult{Item: item}
		for _, c := range s.registry.cascadesOf(typ) {
			if !c.OnRestore {
				continue
			}
			n, err := s.cascade(ctx, c, scope, id, Manager.RestoreWhere)
			if err != nil {
				return err
			}
			if n > 0 {
				if res.Cascaded == nil {
					res.Cascaded = make(map[string]int)
				}
				res.Cascaded[c.Child] += n
				s.log.Info("cascade restore",
					zap.String("parent", typ),
					zap.String("parent_id", id),
					zap.String("child", c.Child),
					zap.Int("count", n),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Outcome statuses of a bulk restore
const (
	StatusRestored = "restored"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

// Outcome is the result of one id of a bulk restore
type Outcome struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Failure is an id that could not be restored
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult groups bulk restore outcomes by status
type BulkResult struct {
	Restored []string  `json:"restored"`
	NotFound []string  `json:"not_found"`
	Failed   []Failure `json:"failed"`
	Results  []Outcome `json:"results"`
}

// BulkRestore restores each id independently. A failing id never undoes the
// others; every id gets an outcome, reported in request order.
func (s *Service) BulkRestore(ctx context.Context, typ string, scope lifecycle.Scope, ids []string) (*BulkResult, error) {
	if _, err := s.registry.Lookup(typ); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids must not be empty", lifecycle.ErrInvalidArgument)
	}
	if len(ids) > MaxBulkIDs {
		return nil, fmt.Errorf("%w: at most %d ids per request", lifecycle.ErrInvalidArgument, MaxBulkIDs)
	}

	ids = dedupe(ids)
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		task := func() {
			defer wg.Done()
			_, errs[i] = s.Restore(ctx, typ, scope, id)
		}

		wg.Add(1)
		if s.pool == nil {
			task()
			continue
		}
		if err := s.pool.Submit(ctx, id, task); err != nil {
			errs[i] = err
			wg.Done()
		}
	}
	wg.Wait()

	res := &BulkResult{
		Restored: []string{},
		NotFound: []string{},
		Failed:   []Failure{},
		Results:  make([]Outcome, len(ids)),
	}
	var failures error
	for i, id := range ids {
		err := errs[i]
		switch {
		case err == nil:
			res.Restored = append(res.Restored, id)
			res.Results[i] = Outcome{ID: id, Status: StatusRestored}
		case errors.Is(err, lifecycle.ErrNotFound):
			res.NotFound = append(res.NotFound, id)
			res.Results[i] = Outcome{ID: id, Status: StatusNotFound}
		default:
			res.Failed = append(res.Failed, Failure{ID: id, Error: err.Error()})
			res.Results[i] = Outcome{ID: id, Status: StatusFailed, Error: err.Error()}
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", id, err))
		}
	}

	if failures != nil {
		s.log.Warn("bulk restore finished with failures",
			zap.String("entity", typ),
			zap.Int("failed", len(res.Failed)),
			zap.Error(failures),
		)
	}
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Purge permanently removes one entity
func (s *Service) Purge(ctx context.Context, typ string, scope lifecycle.Scope, id string, confirm bool) error {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return err
	}
	return m.HardDelete(ctx, scope, id, confirm)
}

// Empty permanently removes every entity of typ in the bin
func (s *Service) Empty(ctx context.Context, typ string, scope lifecycle.Scope, confirm bool) (int, error) {
	m, err := s.registry.Lookup(typ)
	if err != nil {
		return 0, err
	}
	return m.PurgeDeleted(ctx, scope, confirm)
}

// Counts returns the number of deleted entities per type. Types that fail
// to count are left out and their errors combined.
func (s *Service) Counts(ctx context.Context, scope lifecycle.Scope) (map[string]int64, error) {
	counts := make(map[string]int64)
	var errs error
	for _, name := range s.registry.Names() {
		m, err := s.registry.Lookup(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n, err := m.CountDeleted(ctx, scope)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		counts[name] = n
	}
	return counts, errs
}
