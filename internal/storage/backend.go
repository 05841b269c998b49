package storage

import (
	"context"
	"reflect"
	"time"
)

// Backend names.
const (
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
)

// backend is implemented by each store. A backend owns exactly one
// connection.
type backend interface {
	Dialect() Dialect
	CreateTables(ctx context.Context, tables []Table) error
	Begin(ctx context.Context) (tx, error)
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	Count(ctx context.Context, table string) (int64, error)
	Close() error
}

// tx is one open write transaction. WriteBatch is atomic: either every row
// of the batch becomes part of the transaction or none does, and a failed
// batch leaves earlier batches intact. Calls must be serialized.
type tx interface {
	WriteBatch(ctx context.Context, rows []Row) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result is a fully materialized query result. Values are normalized to
// int64, float64, bool, string or nil.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// normalize converts a driver value to the canonical Go type of the named
// column. Unknown columns keep their (dereferenced) driver type.
func normalize(column string, v any) any {
	v = deref(v)
	if v == nil {
		return nil
	}

	typ, known := columnTypes[column]
	switch x := v.(type) {
	case []byte:
		v = string(x)
	case time.Time:
		return x.Unix()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		switch {
		case known && typ == TypeBool:
			return i != 0
		case known && typ == TypeFloat:
			return float64(i)
		}
		return i
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := int64(rv.Uint())
		switch {
		case known && typ == TypeBool:
			return u != 0
		case known && typ == TypeFloat:
			return float64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	}
	return v
}

// deref follows pointers until a non-pointer value or nil.
func deref(v any) any {
	for v != nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	return nil
}
