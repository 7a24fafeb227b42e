package sietch

// Direction of an ORDER BY term
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is a single ORDER BY term
type Order struct {
	Field     string
	Direction Direction
}

// DeletedMode selects which rows a read sees with respect to soft deletion
type DeletedMode int

const (
	// DeletedModeDefault defers to the context override, then excludes deleted rows
	DeletedModeDefault DeletedMode = iota
	// DeletedModeExclude returns active rows only
	DeletedModeExclude
	// DeletedModeInclude returns active and deleted rows
	DeletedModeInclude
	// DeletedModeOnly returns deleted rows only
	DeletedModeOnly
)

func (m DeletedMode) String() string {
	switch m {
	case DeletedModeExclude:
		return "exclude"
	case DeletedModeInclude:
		return "include"
	case DeletedModeOnly:
		return "only"
	default:
		return "default"
	}
}

// Query is a read request: predicate tree, ordering and pagination.
// Limit 0 means no limit.
type Query struct {
	Filter  *Filter
	Orders  []Order
	Limit   int
	Offset  int
	Deleted DeletedMode
}

// NewQuery creates an empty query
func NewQuery() *Query {
	return &Query{}
}

// Where adds a condition combined with AND to the query filter
func (q *Query) Where(field string, op Operator, value any) *Query {
	cond := Condition{Field: field, Operator: op, Value: value}
	if q.Filter.IsEmpty() || q.Filter.logic() != LogicAnd {
		q.Filter = and(q.Filter, cond)
		return q
	}
	q.Filter = q.Filter.Clone()
	q.Filter.Conditions = append(q.Filter.Conditions, cond)
	return q
}

// Filtered combines the query filter with f using AND
func (q *Query) Filtered(f *Filter) *Query {
	if f.IsEmpty() {
		return q
	}
	if q.Filter.IsEmpty() {
		q.Filter = f.Clone()
		return q
	}
	q.Filter = &Filter{Logic: LogicAnd, Groups: []*Filter{q.Filter, f.Clone()}}
	return q
}

// OrderBy appends an ORDER BY term
func (q *Query) OrderBy(field string, dir Direction) *Query {
	q.Orders = append(q.Orders, Order{Field: field, Direction: dir})
	return q
}

// WithLimit sets the maximum number of rows returned
func (q *Query) WithLimit(limit int) *Query {
	q.Limit = limit
	return q
}

// WithOffset sets the number of rows skipped
func (q *Query) WithOffset(offset int) *Query {
	q.Offset = offset
	return q
}

// WithDeleted makes this query return active and soft-deleted rows,
// regardless of any context override.
func (q *Query) WithDeleted() *Query {
	q.Deleted = DeletedModeInclude
	return q
}

// OnlyDeleted makes this query return soft-deleted rows only,
// regardless of any context override.
func (q *Query) OnlyDeleted() *Query {
	q.Deleted = DeletedModeOnly
	return q
}

// Clone returns an independent copy of the query
func (q *Query) Clone() *Query {
	if q == nil {
		return NewQuery()
	}
	out := *q
	out.Filter = q.Filter.Clone()
	if len(q.Orders) > 0 {
		out.Orders = append([]Order(nil), q.Orders...)
	}
	return &out
}
