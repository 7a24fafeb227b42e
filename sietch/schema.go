package sietch

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ColumnType represents SQL column data types
type ColumnType string

const (
	ColumnTypeInteger     ColumnType = "INTEGER"
	ColumnTypeBigInt      ColumnType = "BIGINT"
	ColumnTypeText        ColumnType = "TEXT"
	ColumnTypeBoolean     ColumnType = "BOOLEAN"
	ColumnTypeTimestampTZ ColumnType = "TIMESTAMPTZ"
	ColumnTypeJSON        ColumnType = "JSONB"
	ColumnTypeFloat       ColumnType = "FLOAT8"
	ColumnTypeBytes       ColumnType = "BYTEA"
)

// IndexType represents different types of database indexes
type IndexType string

const (
	IndexTypeBTree IndexType = "BTREE"
	IndexTypeHash  IndexType = "HASH"
	IndexTypeGin   IndexType = "GIN"
)

// ColumnDef defines a table column
type ColumnDef struct {
	Name         string
	Type         ColumnType
	PrimaryKey   bool
	NotNull      bool
	Unique       bool
	DefaultValue string
}

// IndexDef defines a table index
type IndexDef struct {
	Name    string
	Type    IndexType
	Columns []string
	Unique  bool
	Where   string // Partial index condition
}

// TableDef defines a complete table schema
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Indexes []IndexDef
}

// HasColumn reports whether the table defines the named column
func (d *TableDef) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// InferTableDef infers a table definition from the `db` tags of T.
// Pointer fields and fields tagged `nullable:"true"` are nullable.
// Soft-deletable entities get an index on deleted_at.
func InferTableDef[T any](tableName string) (*TableDef, error) {
	if err := sanitizeIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	cols, err := structColumns[T]()
	if err != nil {
		return nil, err
	}

	var zero T
	typ := reflect.TypeOf(zero)
	tableDef := &TableDef{Name: tableName}

	for i, c := range cols {
		field := typ.FieldByIndex(c.index)
		colDef := ColumnDef{
			Name:       c.name,
			Type:       inferColumnType(c.typ),
			PrimaryKey: i == 0,
			NotNull:    !c.nullable,
		}
		if field.Tag.Get("unique") == "true" {
			colDef.Unique = true
		}
		if defaultVal := field.Tag.Get("default"); defaultVal != "" {
			colDef.DefaultValue = defaultVal
		}
		if sqlType := field.Tag.Get("sqltype"); sqlType != "" {
			colDef.Type = ColumnType(sqlType)
		}
		tableDef.Columns = append(tableDef.Columns, colDef)
	}

	if isSoftDeletable[T]() && tableDef.HasColumn(DeletedAtField) {
		tableDef.Indexes = append(tableDef.Indexes, SoftDeleteIndex(tableName))
	}
	for _, c := range cols {
		if typ.FieldByIndex(c.index).Tag.Get("index") == "true" {
			tableDef.Indexes = append(tableDef.Indexes, IndexDef{
				Name:    fmt.Sprintf("idx_%s_%s", tableName, c.name),
				Type:    IndexTypeBTree,
				Columns: []string{c.name},
			})
		}
	}

	return tableDef, nil
}

// SoftDeleteIndex indexes the deletion timestamp used by every default read
func SoftDeleteIndex(tableName string) IndexDef {
	return IndexDef{
		Name:    fmt.Sprintf("idx_%s_%s", tableName, DeletedAtField),
		Type:    IndexTypeBTree,
		Columns: []string{DeletedAtField},
	}
}

var timeType = reflect.TypeOf(time.Time{})

// inferColumnType maps Go types to SQL column types
func inferColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return ColumnTypeTimestampTZ
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int16, reflect.Int8:
		return ColumnTypeInteger
	case reflect.Int64:
		return ColumnTypeBigInt
	case reflect.String:
		return ColumnTypeText
	case reflect.Bool:
		return ColumnTypeBoolean
	case reflect.Float32, reflect.Float64:
		return ColumnTypeFloat
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return ColumnTypeBytes
		}
		return ColumnTypeJSON
	case reflect.Map, reflect.Struct:
		return ColumnTypeJSON
	default:
		return ColumnTypeText
	}
}

// GenerateCreateTableSQL generates CREATE TABLE SQL from table definition
func GenerateCreateTableSQL(def *TableDef) string {
	parts := make([]string, 0, len(def.Columns))

	for _, col := range def.Columns {
		colDef := fmt.Sprintf(`"%s" %s`, col.Name, col.Type)

		if col.PrimaryKey {
			colDef += " PRIMARY KEY"
		}
		if col.NotNull && !col.PrimaryKey {
			colDef += " NOT NULL"
		}
		if col.Unique && !col.PrimaryKey {
			colDef += " UNIQUE"
		}
		if col.DefaultValue != "" {
			colDef += " DEFAULT " + col.DefaultValue
		}

		parts = append(parts, colDef)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS \"%s\" (\n  %s\n)",
		def.Name,
		strings.Join(parts, ",\n  "),
	)
}

// GenerateDropTableSQL generates DROP TABLE SQL
func GenerateDropTableSQL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS \"%s\" CASCADE", tableName)
}

// GenerateCreateIndexSQL generates CREATE INDEX SQL from index definition
func GenerateCreateIndexSQL(tableName string, idx *IndexDef) string {
	uniqueClause := ""
	if idx.Unique {
		uniqueClause = "UNIQUE "
	}

	columns := make([]string, len(idx.Columns))
	for i, col := range idx.Columns {
		columns[i] = fmt.Sprintf(`"%s"`, col)
	}

	sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS \"%s\" ON \"%s\" USING %s (%s)",
		uniqueClause,
		idx.Name,
		tableName,
		idx.Type,
		strings.Join(columns, ", "),
	)

	if idx.Where != "" {
		sql += " WHERE " + idx.Where
	}

	return sql
}

// MigrationStatements returns the DDL creating every table and index in defs
func MigrationStatements(defs ...*TableDef) []string {
	var stmts []string
	for _, def := range defs {
		stmts = append(stmts, GenerateCreateTableSQL(def))
		for i := range def.Indexes {
			stmts = append(stmts, GenerateCreateIndexSQL(def.Name, &def.Indexes[i]))
		}
	}
	return stmts
}

// Migrate creates the tables and indexes of defs in a single transaction
func Migrate(ctx context.Context, pool *pgxpool.Pool, defs ...*TableDef) error {
	return withTx(ctx, pool, func(ctx context.Context) error {
		tx, _ := getTxFromContext(ctx)
		for _, stmt := range MigrationStatements(defs...) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}
