package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/domain"
	"github.com/rhesis-ai/rhesis-backend/idgen"
	"github.com/rhesis-ai/rhesis-backend/sietch"
)

const (
	instrumentationName = "github.com/rhesis-ai/rhesis-backend/lifecycle"

	organizationField = "organization_id"
	createdAtField    = "created_at"
	idField           = "id"

	purgeBatchSize = 500
)

// Service exposes soft delete, restore and hard delete for one entity type.
// All reads and writes are confined to the caller's Scope.
type Service[T any] struct {
	name   string
	repo   sietch.Repository[T, string]
	opts   options
	tracer trace.Tracer
}

// New builds a Service for the table name over repo.
// It panics if *T does not implement domain.Entity.
func New[T any](name string, repo sietch.Repository[T, string], opts ...Option) *Service[T] {
	var zero T
	if _, ok := any(&zero).(domain.Entity); !ok {
		panic(fmt.Sprintf("lifecycle: %T does not implement domain.Entity", zero))
	}

	o := options{
		now:        time.Now,
		log:        zap.NewNop(),
		validateID: idgen.ValidateUUID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	return &Service[T]{
		name:   name,
		repo:   repo,
		opts:   o,
		tracer: o.tracer.Tracer(instrumentationName),
	}
}

// Name returns the table name the service manages
func (s *Service[T]) Name() string { return s.name }

func entityOf[T any](item *T) domain.Entity {
	return any(item).(domain.Entity)
}

// track opens a span for op and returns the function closing it
func (s *Service[T]) track(ctx context.Context, op, id string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, s.name+"."+op,
		trace.WithAttributes(
			attribute.String("entity", s.name),
			attribute.String("operation", op),
		),
	)
	if id != "" {
		span.SetAttributes(attribute.String("entity.id", id))
	}

	return ctx, func(err error) {
		outcome := outcomeOf(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.opts.metrics.record(s.name, op, outcome)
		if outcome == "error" {
			s.opts.log.Warn("lifecycle operation failed",
				zap.String("entity", s.name),
				zap.String("operation", op),
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDeleted):
		return "deleted"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *Service[T]) checkID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidArgument)
	}
	if s.opts.validateID != nil {
		if err := s.opts.validateID(id); err != nil {
			return fmt.Errorf("%w: malformed id %q", ErrInvalidArgument, id)
		}
	}
	return nil
}

func (s *Service[T]) notFound(id string) error {
	return fmt.Errorf("%s %s: %w", s.name, id, ErrNotFound)
}

// load fetches id within scope. Rows of other organizations are reported as
// missing so their existence does not leak.
func (s *Service[T]) load(ctx context.Context, scope Scope, id string, opt sietch.GetOption) (*T, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if err := s.checkID(id); err != nil {
		return nil, err
	}

	item, err := s.repo.Get(ctx, id, opt)
	if errors.Is(err, sietch.ErrItemNotFound) {
		return nil, s.notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", s.name, id, err)
	}
	if scope.OrganizationID != "" && entityOf(item).GetOrganizationID() != scope.OrganizationID {
		return nil, s.notFound(id)
	}
	return item, nil
}

// scoped builds the base query of every list operation
func (s *Service[T]) scoped(scope Scope, conds []sietch.Condition) *sietch.Query {
	q := sietch.NewQuery()
	if scope.OrganizationID != "" {
		q.Where(organizationField, sietch.OpEqual, scope.OrganizationID)
	}
	for _, c := range conds {
		q.Where(c.Field, c.Operator, c.Value)
	}
	return q
}

func (s *Service[T]) mapWriteError(id string, err error) error {
	switch {
	case errors.Is(err, sietch.ErrNoUpdateItem), errors.Is(err, sietch.ErrNoDeleteItem), errors.Is(err, sietch.ErrItemNotFound):
		return s.notFound(id)
	case errors.Is(err, sietch.ErrItemAlreadyExists):
		return fmt.Errorf("%s %s: %w", s.name, id, ErrConflict)
	default:
		return fmt.Errorf("failed to write %s %s: %w", s.name, id, err)
	}
}

func (s *Service[T]) publish(topic string, scope Scope, item *T, at time.Time) {
	if s.opts.publisher == nil {
		return
	}
	e := entityOf(item)
	evt := Event{
		Topic:          topic,
		Entity:         s.name,
		ID:             e.GetID(),
		OrganizationID: e.GetOrganizationID(),
		UserID:         scope.UserID,
		At:             at.UTC(),
	}
	if err := s.opts.publisher.Publish(topic, evt); err != nil {
		s.opts.log.Warn("failed to publish lifecycle event",
			zap.String("topic", topic),
			zap.String("entity", s.name),
			zap.String("id", evt.ID),
			zap.Error(err),
		)
	}
}

// Create stores a new active entity owned by the caller's organization.
// An id is generated when the item has none.
func (s *Service[T]) Create(ctx context.Context, scope Scope, item *T) (err error) {
	e := entityOf(item)
	ctx, done := s.track(ctx, "create", e.GetID())
	defer func() { done(err) }()

	if scope.OrganizationID == "" {
		return fmt.Errorf("%w: organization is required to create %s", ErrInvalidArgument, s.name)
	}
	if e.GetID() == "" {
		e.SetID(idgen.NewUUID())
	} else if err := s.checkID(e.GetID()); err != nil {
		return err
	}
	e.SetOrganizationID(scope.OrganizationID)
	e.SetDeletedAt(nil)

	if err := s.repo.Create(ctx, item); err != nil {
		return s.mapWriteError(e.GetID(), err)
	}
	return nil
}

// Get returns an active entity. A soft-deleted one yields ErrDeleted unless
// ctx disables the soft-delete filter.
func (s *Service[T]) Get(ctx context.Context, scope Scope, id string) (item *T, err error) {
	ctx, done := s.track(ctx, "get", id)
	defer func() { done(err) }()

	item, err = s.load(ctx, scope, id, sietch.IncludingDeleted())
	if err != nil {
		return nil, err
	}
	if sietch.ResolveDeletedMode(ctx, sietch.DeletedModeDefault) == sietch.DeletedModeExclude && sietch.IsEntityDeleted(item) {
		return nil, fmt.Errorf("%s %s: %w", s.name, id, ErrDeleted)
	}
	return item, nil
}

// GetIncludingDeleted returns the entity whatever its deletion state
func (s *Service[T]) GetIncludingDeleted(ctx context.Context, scope Scope, id string) (item *T, err error) {
	ctx, done := s.track(ctx, "get_including_deleted", id)
	defer func() { done(err) }()

	return s.load(ctx, scope, id, sietch.IncludingDeleted())
}

// List returns a page of visible entities, newest first, with the total count
func (s *Service[T]) List(ctx context.Context, scope Scope, page Page, conds ...sietch.Condition) (items []T, total int64, err error) {
	ctx, done := s.track(ctx, "list", "")
	defer func() { done(err) }()

	if err := scope.validate(); err != nil {
		return nil, 0, err
	}
	if page, err = page.normalize(); err != nil {
		return nil, 0, err
	}

	q := s.scoped(scope, conds)
	if total, err = s.repo.Count(ctx, q); err != nil {
		return nil, 0, s.wrapQueryError(err)
	}
	items, err = s.repo.Query(ctx, q.Clone().
		OrderBy(createdAtField, sietch.Desc).
		OrderBy(idField, sietch.Asc).
		WithLimit(page.Limit).
		WithOffset(page.Skip))
	if err != nil {
		return nil, 0, s.wrapQueryError(err)
	}
	return items, total, nil
}

func (s *Service[T]) wrapQueryError(err error) error {
	if errors.Is(err, sietch.ErrInvalidFilter) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return fmt.Errorf("failed to query %s: %w", s.name, err)
}

// SoftDelete stamps deleted_at. Deleting an already deleted entity is a
// no-op that returns it with its original timestamp.
func (s *Service[T]) SoftDelete(ctx context.Context, scope Scope, id string) (item *T, err error) {
	ctx, done := s.track(ctx, "soft_delete", id)
	defer func() { done(err) }()

	item, err = s.load(ctx, scope, id, sietch.IncludingDeleted())
	if err != nil {
		return nil, err
	}
	if sietch.IsEntityDeleted(item) {
		return item, nil
	}

	now := s.opts.now()
	sietch.MarkDeleted(item, now)
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.mapWriteError(id, err)
	}
	s.publish(TopicSoftDeleted, scope, item, now)
	return item, nil
}

// Restore clears deleted_at of a soft-deleted entity. Active entities are
// reported as ErrNotFound.
func (s *Service[T]) Restore(ctx context.Context, scope Scope, id string) (item *T, err error) {
	ctx, done := s.track(ctx, "restore", id)
	defer func() { done(err) }()

	item, err = s.load(ctx, scope, id, sietch.OnlyIfDeleted())
	if err != nil {
		return nil, err
	}

	sietch.MarkRestored(item)
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.mapWriteError(id, err)
	}
	s.publish(TopicRestored, scope, item, s.opts.now())
	return item, nil
}

// HardDelete physically removes an active or deleted entity. It requires an
// elevated scope and confirm set to true.
func (s *Service[T]) HardDelete(ctx context.Context, scope Scope, id string, confirm bool) (err error) {
	ctx, done := s.track(ctx, "hard_delete", id)
	defer func() { done(err) }()

	if err := scope.requireElevated(); err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("%w: permanent deletion requires confirm=true", ErrInvalidArgument)
	}

	item, err := s.load(ctx, scope, id, sietch.IncludingDeleted())
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapWriteError(id, err)
	}

	s.opts.log.Info("entity permanently deleted",
		zap.String("entity", s.name),
		zap.String("id", id),
		zap.String("user_id", scope.UserID),
	)
	s.publish(TopicPurged, scope, item, s.opts.now())
	return nil
}

// ListDeleted returns a page of soft-deleted entities, most recently deleted first
func (s *Service[T]) ListDeleted(ctx context.Context, scope Scope, page Page) (items []T, total int64, err error) {
	ctx, done := s.track(ctx, "list_deleted", "")
	defer func() { done(err) }()

	if err := scope.validate(); err != nil {
		return nil, 0, err
	}
	if page, err = page.normalize(); err != nil {
		return nil, 0, err
	}

	q := s.scoped(scope, nil).OnlyDeleted()
	if total, err = s.repo.Count(ctx, q); err != nil {
		return nil, 0, s.wrapQueryError(err)
	}
	items, err = s.repo.Query(ctx, q.Clone().
		OrderBy(sietch.DeletedAtField, sietch.Desc).
		OrderBy(idField, sietch.Asc).
		WithLimit(page.Limit).
		WithOffset(page.Skip))
	if err != nil {
		return nil, 0, s.wrapQueryError(err)
	}
	return items, total, nil
}

// CountDeleted counts soft-deleted entities in scope
func (s *Service[T]) CountDeleted(ctx context.Context, scope Scope) (n int64, err error) {
	ctx, done := s.track(ctx, "count_deleted", "")
	defer func() { done(err) }()

	if err := scope.validate(); err != nil {
		return 0, err
	}
	n, err = s.repo.Count(ctx, s.scoped(scope, nil).OnlyDeleted())
	if err != nil {
		return 0, s.wrapQueryError(err)
	}
	return n, nil
}

// PurgeDeleted physically removes every soft-deleted entity in scope and
// returns how many were removed.
func (s *Service[T]) PurgeDeleted(ctx context.Context, scope Scope, confirm bool) (n int, err error) {
	ctx, done := s.track(ctx, "purge_deleted", "")
	defer func() { done(err) }()

	if err := scope.requireElevated(); err != nil {
		return 0, err
	}
	if !confirm {
		return 0, fmt.Errorf("%w: emptying the recycle bin requires confirm=true", ErrInvalidArgument)
	}

	var purged []T
	err = sietch.RunInTx(ctx, s.repo, func(ctx context.Context, repo sietch.Repository[T, string]) error {
		purged = purged[:0]
		for {
			batch, err := repo.Query(ctx, s.scoped(scope, nil).OnlyDeleted().
				OrderBy(idField, sietch.Asc).
				WithLimit(purgeBatchSize))
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				return nil
			}

			ids := make([]string, len(batch))
			for i := range batch {
				ids[i] = entityOf(&batch[i]).GetID()
			}
			if err := repo.BatchDelete(ctx, ids); err != nil {
				return err
			}
			purged = append(purged, batch...)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", s.name, err)
	}

	now := s.opts.now()
	for i := range purged {
		s.publish(TopicPurged, scope, &purged[i], now)
	}
	if len(purged) > 0 {
		s.opts.log.Info("recycle bin emptied",
			zap.String("entity", s.name),
			zap.Int("count", len(purged)),
			zap.String("organization_id", scope.OrganizationID),
		)
	}
	return len(purged), nil
}

// SoftDeleteWhere soft-deletes every active entity in scope matching conds
func (s *Service[T]) SoftDeleteWhere(ctx context.Context, scope Scope, conds ...sietch.Condition) (n int, err error) {
	ctx, done := s.track(ctx, "soft_delete_where", "")
	defer func() { done(err) }()

	q := s.scoped(scope, conds)
	q.Deleted = sietch.DeletedModeExclude

	now := s.opts.now()
	changed, err := s.transition(ctx, scope, q, func(item *T) {
		sietch.MarkDeleted(item, now)
	})
	if err != nil {
		return 0, err
	}
	for i := range changed {
		s.publish(TopicSoftDeleted, scope, &changed[i], now)
	}
	return len(changed), nil
}

// RestoreWhere restores every soft-deleted entity in scope matching conds
func (s *Service[T]) RestoreWhere(ctx context.Context, scope Scope, conds ...sietch.Condition) (n int, err error) {
	ctx, done := s.track(ctx, "restore_where", "")
	defer func() { done(err) }()

	changed, err := s.transition(ctx, scope, s.scoped(scope, conds).OnlyDeleted(), func(item *T) {
		sietch.MarkRestored(item)
	})
	if err != nil {
		return 0, err
	}
	now := s.opts.now()
	for i := range changed {
		s.publish(TopicRestored, scope, &changed[i], now)
	}
	return len(changed), nil
}

// transition applies mutate to every row matched by q inside one transaction
func (s *Service[T]) transition(ctx context.Context, scope Scope, q *sietch.Query, mutate func(*T)) ([]T, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}

	var changed []T
	err := sietch.RunInTx(ctx, s.repo, func(ctx context.Context, repo sietch.Repository[T, string]) error {
		rows, err := repo.Query(ctx, q)
		if err != nil {
			return err
		}
		changed = changed[:0]
		for i := range rows {
			mutate(&rows[i])
			if err := repo.Update(ctx, &rows[i]); err != nil {
				return s.mapWriteError(entityOf(&rows[i]).GetID(), err)
			}
			changed = append(changed, rows[i])
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapQueryError(err)
	}
	return changed, nil
}
