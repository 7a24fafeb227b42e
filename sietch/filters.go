package sietch

// Operator is a comparison applied by a Condition
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpGreaterThan    Operator = ">"
	OpLessThan       Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT IN"
	OpLike           Operator = "LIKE"
	OpIsNull         Operator = "IS NULL"
	OpIsNotNull      Operator = "IS NOT NULL"
)

// Logic joins the members of a Filter node
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
	// LogicNot negates the conjunction of the node members
	LogicNot Logic = "NOT"
)

// Condition represents a condition to filter queries.
// Field is the storage column name (the `db` tag of the entity field).
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Filter is a node of a predicate tree. Conditions and Groups of the same
// node are combined with Logic.
type Filter struct {
	Logic      Logic
	Conditions []Condition
	Groups     []*Filter
}

// IsEmpty reports whether the filter carries no predicate at all
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	if len(f.Conditions) > 0 {
		return false
	}
	for _, g := range f.Groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the predicate tree. Condition values are shared.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	out := &Filter{Logic: f.Logic}
	if len(f.Conditions) > 0 {
		out.Conditions = make([]Condition, len(f.Conditions))
		copy(out.Conditions, f.Conditions)
	}
	if len(f.Groups) > 0 {
		out.Groups = make([]*Filter, len(f.Groups))
		for i, g := range f.Groups {
			out.Groups[i] = g.Clone()
		}
	}
	return out
}

func (f *Filter) logic() Logic {
	if f.Logic == "" {
		return LogicAnd
	}
	return f.Logic
}

// FilterBuilder builds an AND-rooted predicate tree fluently
type FilterBuilder struct {
	root *Filter
}

// NewFilter starts a new filter builder
func NewFilter() *FilterBuilder {
	return &FilterBuilder{root: &Filter{Logic: LogicAnd}}
}

// Where adds a condition combined with AND
func (b *FilterBuilder) Where(field string, op Operator, value any) *FilterBuilder {
	b.root.Conditions = append(b.root.Conditions, Condition{Field: field, Operator: op, Value: value})
	return b
}

// Or adds a group where any of the conditions must hold
func (b *FilterBuilder) Or(conditions ...Condition) *FilterBuilder {
	if len(conditions) == 0 {
		return b
	}
	b.root.Groups = append(b.root.Groups, &Filter{Logic: LogicOr, Conditions: conditions})
	return b
}

// Not adds a group negating the conjunction of the conditions
func (b *FilterBuilder) Not(conditions ...Condition) *FilterBuilder {
	if len(conditions) == 0 {
		return b
	}
	b.root.Groups = append(b.root.Groups, &Filter{Logic: LogicNot, Conditions: conditions})
	return b
}

// Group nests an arbitrary filter, combined with AND
func (b *FilterBuilder) Group(f *Filter) *FilterBuilder {
	if f.IsEmpty() {
		return b
	}
	b.root.Groups = append(b.root.Groups, f)
	return b
}

// Build returns the assembled filter
func (b *FilterBuilder) Build() *Filter {
	return b.root
}

// and combines f with extra conditions. The extra conditions are placed at the
// head of the root conjunction; roots that are not conjunctions are nested
// under a new AND node. f is never modified.
func and(f *Filter, extra ...Condition) *Filter {
	if f.IsEmpty() {
		return &Filter{Logic: LogicAnd, Conditions: append([]Condition(nil), extra...)}
	}
	c := f.Clone()
	if c.logic() == LogicAnd {
		c.Logic = LogicAnd
		c.Conditions = append(append([]Condition(nil), extra...), c.Conditions...)
		return c
	}
	return &Filter{
		Logic:      LogicAnd,
		Conditions: append([]Condition(nil), extra...),
		Groups:     []*Filter{c},
	}
}
