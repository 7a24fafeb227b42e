package sietch

import (
	"fmt"
	"reflect"
)

// column maps a `db` tag to the (possibly promoted) struct field holding it
type column struct {
	name     string
	index    []int
	typ      reflect.Type
	nullable bool
}

// structColumns lists the `db`-tagged fields of T in declaration order.
// Fields promoted from embedded structs are included in place, so an
// embedded base model placed first contributes the primary key column.
func structColumns[T any]() ([]column, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, fmt.Errorf("entity type must be a struct")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type must be a struct, got %s", typ.Kind())
	}

	var columns []column
	for _, field := range reflect.VisibleFields(typ) {
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		columns = append(columns, column{
			name:     tag,
			index:    field.Index,
			typ:      field.Type,
			nullable: field.Type.Kind() == reflect.Ptr || field.Tag.Get("nullable") == "true",
		})
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns found")
	}

	return columns, nil
}

func columnNames(columns []column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

func columnIndex(columns []column) map[string]column {
	idx := make(map[string]column, len(columns))
	for _, c := range columns {
		idx[c.name] = c
	}
	return idx
}

// fieldValue returns the value of column c on item
func fieldValue[T any](item *T, c column) reflect.Value {
	return reflect.ValueOf(item).Elem().FieldByIndex(c.index)
}
