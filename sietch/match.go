package sietch

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
)

// evaluator resolves columns of T for in-memory filtering and sorting
type evaluator[T any] struct {
	columns map[string]column
}

func newEvaluator[T any]() (*evaluator[T], error) {
	cols, err := structColumns[T]()
	if err != nil {
		return nil, err
	}
	return &evaluator[T]{columns: columnIndex(cols)}, nil
}

// validate rejects filters that reference unknown columns or operators
func (e *evaluator[T]) validate(f *Filter) error {
	if f == nil {
		return nil
	}
	for _, c := range f.Conditions {
		if _, ok := e.columns[c.Field]; !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, c.Field)
		}
		if !knownOperator(c.Operator) {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, c.Operator)
		}
	}
	for _, g := range f.Groups {
		if err := e.validate(g); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator[T]) matches(item *T, f *Filter) bool {
	if f == nil {
		return true
	}

	results := make([]bool, 0, len(f.Conditions)+len(f.Groups))
	for _, c := range f.Conditions {
		results = append(results, e.matchCondition(item, c))
	}
	for _, g := range f.Groups {
		results = append(results, e.matches(item, g))
	}

	switch f.logic() {
	case LogicOr:
		for _, r := range results {
			if r {
				return true
			}
		}
		return len(results) == 0
	case LogicNot:
		for _, r := range results {
			if !r {
				return true
			}
		}
		return len(results) == 0
	default:
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
}

func (e *evaluator[T]) value(item *T, field string) (reflect.Value, bool) {
	c, ok := e.columns[field]
	if !ok {
		return reflect.Value{}, false
	}
	return fieldValue(item, c), true
}

func (e *evaluator[T]) matchCondition(item *T, cond Condition) bool {
	fv, ok := e.value(item, cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpIsNull:
		return isNull(fv)
	case OpIsNotNull:
		return !isNull(fv)
	}

	if isNull(fv) {
		// SQL semantics: comparisons against NULL are never true
		return false
	}
	left := normalize(fv.Interface())

	switch cond.Operator {
	case OpEqual:
		return equalValues(left, normalize(cond.Value))
	case OpNotEqual:
		return !equalValues(left, normalize(cond.Value))
	case OpGreaterThan:
		return compareValues(left, normalize(cond.Value)) > 0
	case OpLessThan:
		return compareValues(left, normalize(cond.Value)) < 0
	case OpGreaterOrEqual:
		return compareValues(left, normalize(cond.Value)) >= 0
	case OpLessOrEqual:
		return compareValues(left, normalize(cond.Value)) <= 0
	case OpIn:
		return inValues(left, cond.Value)
	case OpNotIn:
		return !inValues(left, cond.Value)
	case OpLike:
		s, ok1 := left.(string)
		pattern, ok2 := normalize(cond.Value).(string)
		return ok1 && ok2 && likeMatch(s, pattern)
	default:
		return false
	}
}

// less orders two items by the query ordering; nulls sort last
func (e *evaluator[T]) less(a, b *T, orders []Order) (bool, bool) {
	for _, o := range orders {
		av, ok := e.value(a, o.Field)
		if !ok {
			continue
		}
		bv, _ := e.value(b, o.Field)
		aNull, bNull := isNull(av), isNull(bv)
		switch {
		case aNull && bNull:
			continue
		case aNull:
			return false, true
		case bNull:
			return true, true
		}
		c := compareValues(normalize(av.Interface()), normalize(bv.Interface()))
		if c == 0 {
			continue
		}
		if o.Direction == Desc {
			return c > 0, true
		}
		return c < 0, true
	}
	return false, false
}

func knownOperator(op Operator) bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpGreaterOrEqual,
		OpLessOrEqual, OpIn, OpNotIn, OpLike, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

func isNull(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// normalize dereferences pointers and folds numeric and string kinds so
// that values of different declared types compare naturally.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t
	}
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return *t
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if t, ok := rv.Interface().(time.Time); ok {
		return t
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func equalValues(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func inValues(left any, list any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return equalValues(left, normalize(list))
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(left, normalize(rv.Index(i).Interface())) {
			return true
		}
	}
	return false
}

var likeCache sync.Map

// likeMatch implements SQL LIKE with % and _ wildcards
func likeMatch(s, pattern string) bool {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(s)
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile("(?s)" + b.String())
	likeCache.Store(pattern, re)
	return re.MatchString(s)
}
