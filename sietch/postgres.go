package sietch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Queryable abstracts both pgxpool.Pool and pgx.Tx
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresConnector PostgreSQL implementation of the Repository interface.
// The first `db` column of T is the primary key.
type PostgresConnector[T any, ID comparable] struct {
	instrumentation[T, ID]
	pool      *pgxpool.Pool
	tableName string
	getID     func(*T) ID
	columns   []column
	index     map[string]column
}

// NewPostgresConnPool opens a pgx connection pool
func NewPostgresConnPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}

func sanitizeIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_') {
			return fmt.Errorf("invalid character in identifier: %c", r)
		}
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// NewPostgresConnector creates a connector bound to tableName
func NewPostgresConnector[T any, ID comparable](pool *pgxpool.Pool, tableName string, getID func(*T) ID) (*PostgresConnector[T, ID], error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if getID == nil {
		return nil, fmt.Errorf("getID function cannot be nil")
	}
	if err := sanitizeIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	columns, err := structColumns[T]()
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if err := sanitizeIdentifier(col.name); err != nil {
			return nil, fmt.Errorf("invalid column name '%s': %w", col.name, err)
		}
	}

	return &PostgresConnector[T, ID]{
		instrumentation: newInstrumentation[T, ID](tableName),
		pool:            pool,
		tableName:       tableName,
		getID:           getID,
		columns:         columns,
		index:           columnIndex(columns),
	}, nil
}

// conn returns the transaction carried by ctx, or the pool
func (r *PostgresConnector[T, ID]) conn(ctx context.Context) Queryable {
	if tx, ok := getTxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func joinQuotedColumns(columns []column) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col.name)
	}
	return strings.Join(quoted, ", ")
}

func buildPlaceholders(n int) string {
	placeholders := make([]string, n)
	for i := 0; i < n; i++ {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(placeholders, ", ")
}

func (r *PostgresConnector[T, ID]) pk() string {
	return quoteIdentifier(r.columns[0].name)
}

func (r *PostgresConnector[T, ID]) getValues(item *T) []any {
	values := make([]any, len(r.columns))
	for i, c := range r.columns {
		values[i] = fieldValue(item, c).Interface()
	}
	return values
}

func (r *PostgresConnector[T, ID]) getScanDestinations(item *T) []any {
	dests := make([]any, len(r.columns))
	for i, c := range r.columns {
		dests[i] = fieldValue(item, c).Addr().Interface()
	}
	return dests
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrItemAlreadyExists
	}
	return err
}

func (r *PostgresConnector[T, ID]) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(r.tableName),
		joinQuotedColumns(r.columns),
		buildPlaceholders(len(r.columns)),
	)
}

func (r *PostgresConnector[T, ID]) Create(ctx context.Context, item *T) (err error) {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if err = r.hooks.ExecuteBeforeCreate(ctx, item); err != nil {
		return err
	}

	query := r.insertSQL()
	values := r.getValues(item)
	start := time.Now()
	_, err = r.conn(ctx).Exec(ctx, query, values...)
	r.logQuery(ctx, "Create", query, values, start, err)
	if err != nil {
		return mapWriteError(err)
	}

	_ = r.hooks.ExecuteAfterCreate(ctx, item)
	return nil
}

func (r *PostgresConnector[T, ID]) Get(ctx context.Context, id ID, opts ...GetOption) (*T, error) {
	q := NewQuery().Where(r.columns[0].name, OpEqual, id).WithLimit(1)
	q.Deleted = resolveGetMode(ctx, opts)

	query, args, err := r.queryBuilder(ApplySoftDeleteFilter[T](ctx, q))
	if err != nil {
		return nil, err
	}

	var item T
	start := time.Now()
	err = r.conn(ctx).QueryRow(ctx, query, args...).Scan(r.getScanDestinations(&item)...)
	r.logQuery(ctx, "Get", query, args, start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresConnector[T, ID]) BatchCreate(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		for i := range items {
			if err := r.Create(ctx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// prepare runs query hooks and the soft-delete interceptor
func (r *PostgresConnector[T, ID]) prepare(ctx context.Context, q *Query) (*Query, error) {
	if q == nil {
		q = NewQuery()
	}
	hooked, err := r.hooks.ExecuteBeforeQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return ApplySoftDeleteFilter[T](ctx, hooked), nil
}

func (r *PostgresConnector[T, ID]) Query(ctx context.Context, q *Query) ([]T, error) {
	eff, err := r.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	query, args, err := r.queryBuilder(eff)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	r.logQuery(ctx, "Query", query, args, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var item T
		if err := rows.Scan(r.getScanDestinations(&item)...); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_ = r.hooks.ExecuteAfterQuery(ctx, results)
	return results, nil
}

func (r *PostgresConnector[T, ID]) Count(ctx context.Context, q *Query) (int64, error) {
	eff, err := r.prepare(ctx, q)
	if err != nil {
		return 0, err
	}
	query, args, err := r.countBuilder(eff)
	if err != nil {
		return 0, err
	}

	var count int64
	start := time.Now()
	err = r.conn(ctx).QueryRow(ctx, query, args...).Scan(&count)
	r.logQuery(ctx, "Count", query, args, start, err)
	return count, err
}

func (r *PostgresConnector[T, ID]) updateSQL() string {
	setClause := make([]string, 0, len(r.columns)-1)
	for i := 1; i < len(r.columns); i++ {
		setClause = append(setClause, fmt.Sprintf("%s = $%d", quoteIdentifier(r.columns[i].name), i))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoteIdentifier(r.tableName),
		strings.Join(setClause, ", "),
		r.pk(),
		len(r.columns),
	)
}

// Update writes every column of item, whatever its deletion state
func (r *PostgresConnector[T, ID]) Update(ctx context.Context, item *T) (err error) {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if len(r.columns) < 2 {
		return ErrUnsupportedOperation
	}
	if err = r.hooks.ExecuteBeforeUpdate(ctx, item); err != nil {
		return err
	}

	query := r.updateSQL()
	values := r.getValues(item)
	args := append(values[1:], values[0])

	start := time.Now()
	ct, err := r.conn(ctx).Exec(ctx, query, args...)
	r.logQuery(ctx, "Update", query, args, start, err)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNoUpdateItem
	}

	_ = r.hooks.ExecuteAfterUpdate(ctx, item)
	return nil
}

// Delete removes the row physically
func (r *PostgresConnector[T, ID]) Delete(ctx context.Context, id ID) (err error) {
	if err = r.hooks.ExecuteBeforeDelete(ctx, id); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quoteIdentifier(r.tableName), r.pk())
	start := time.Now()
	ct, err := r.conn(ctx).Exec(ctx, query, id)
	r.logQuery(ctx, "Delete", query, []any{id}, start, err)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoDeleteItem
	}

	_ = r.hooks.ExecuteAfterDelete(ctx, id)
	return nil
}

func (r *PostgresConnector[T, ID]) BatchDelete(ctx context.Context, ids []ID) error {
	if len(ids) == 0 {
		return nil
	}
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		for _, id := range ids {
			if err := r.Delete(ctx, id); err != nil {
				return fmt.Errorf("%v row not deleted: %w", id, err)
			}
		}
		return nil
	})
}

// Exists checks if a row visible under the soft-delete mode exists
func (r *PostgresConnector[T, ID]) Exists(ctx context.Context, id ID, opts ...GetOption) (bool, error) {
	q := NewQuery().Where(r.columns[0].name, OpEqual, id)
	q.Deleted = resolveGetMode(ctx, opts)

	where, args, err := r.whereClause(ApplySoftDeleteFilter[T](ctx, q).Filter)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s%s)", quoteIdentifier(r.tableName), where)

	var exists bool
	start := time.Now()
	err = r.conn(ctx).QueryRow(ctx, query, args...).Scan(&exists)
	r.logQuery(ctx, "Exists", query, args, start, err)
	return exists, err
}

func (r *PostgresConnector[T, ID]) upsertSQL() string {
	setClauses := make([]string, 0, len(r.columns)-1)
	for i := 1; i < len(r.columns); i++ {
		name := quoteIdentifier(r.columns[i].name)
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", name, name))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdentifier(r.tableName),
		joinQuotedColumns(r.columns),
		buildPlaceholders(len(r.columns)),
		r.pk(),
		strings.Join(setClauses, ", "),
	)
}

// Upsert creates a new row or overwrites the existing one
func (r *PostgresConnector[T, ID]) Upsert(ctx context.Context, item *T) error {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if len(r.columns) < 2 {
		return ErrUnsupportedOperation
	}

	query := r.upsertSQL()
	values := r.getValues(item)
	start := time.Now()
	_, err := r.conn(ctx).Exec(ctx, query, values...)
	r.logQuery(ctx, "Upsert", query, values, start, err)
	return err
}

// WithTx runs fn in a transaction. A transaction already carried by ctx is
// joined instead of starting a new one.
func (r *PostgresConnector[T, ID]) WithTx(ctx context.Context, fn TxFunc[T, ID]) error {
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		return fn(ctx, r)
	})
}

// queryBuilder compiles q into a SELECT. The predicate is compiled first,
// then ORDER BY, then LIMIT and OFFSET.
func (r *PostgresConnector[T, ID]) queryBuilder(q *Query) (string, []any, error) {
	where, args, err := r.whereClause(q.Filter)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", joinQuotedColumns(r.columns), quoteIdentifier(r.tableName), where)

	if len(q.Orders) > 0 {
		terms := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			if _, ok := r.index[o.Field]; !ok {
				return "", nil, fmt.Errorf("%w: unknown order field %q", ErrInvalidFilter, o.Field)
			}
			dir := Asc
			if o.Direction == Desc {
				dir = Desc
			}
			terms[i] = quoteIdentifier(o.Field) + " " + string(dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}

	return b.String(), args, nil
}

// countBuilder compiles the predicate of q into a COUNT; pagination is ignored
func (r *PostgresConnector[T, ID]) countBuilder(q *Query) (string, []any, error) {
	where, args, err := r.whereClause(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + quoteIdentifier(r.tableName) + where, args, nil
}

func (r *PostgresConnector[T, ID]) whereClause(f *Filter) (string, []any, error) {
	if f.IsEmpty() {
		return "", nil, nil
	}
	var args []any
	clause, err := r.buildWhere(f, &args)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + clause, args, nil
}

// buildWhere renders a predicate tree node. Nested groups with more than one
// member are parenthesized.
func (r *PostgresConnector[T, ID]) buildWhere(f *Filter, args *[]any) (string, error) {
	parts := make([]string, 0, len(f.Conditions)+len(f.Groups))
	for _, c := range f.Conditions {
		s, err := r.buildCondition(c, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	for _, g := range f.Groups {
		if g.IsEmpty() {
			continue
		}
		s, err := r.buildWhere(g, args)
		if err != nil {
			return "", err
		}
		if g.logic() != LogicNot && len(g.Conditions)+len(g.Groups) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}

	switch f.logic() {
	case LogicOr:
		return strings.Join(parts, " OR "), nil
	case LogicNot:
		return "NOT (" + strings.Join(parts, " AND ") + ")", nil
	default:
		return strings.Join(parts, " AND "), nil
	}
}

func (r *PostgresConnector[T, ID]) buildCondition(c Condition, args *[]any) (string, error) {
	if _, ok := r.index[c.Field]; !ok {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, c.Field)
	}
	field := quoteIdentifier(c.Field)

	placeholder := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return field + " " + string(c.Operator), nil
	case OpIn, OpNotIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return "", fmt.Errorf("%w: %s expects a list for %q", ErrInvalidFilter, c.Operator, c.Field)
		}
		if rv.Len() == 0 {
			if c.Operator == OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		holders := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			holders[i] = placeholder(rv.Index(i).Interface())
		}
		return fmt.Sprintf("%s %s (%s)", field, c.Operator, strings.Join(holders, ", ")), nil
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpLike:
		return fmt.Sprintf("%s %s %s", field, c.Operator, placeholder(c.Value)), nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, c.Operator)
	}
}
