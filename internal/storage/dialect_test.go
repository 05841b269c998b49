package storage

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

func binder(args *[]any, d Dialect) func(any) string {
	return func(v any) string {
		*args = append(*args, v)
		return d.Placeholder(len(*args))
	}
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{BackendSQLite, BackendClickHouse, BackendPostgres} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLitePointInPolygon(t *testing.T) {
	var args []any
	sql := SQLiteDialect{}.PointInPolygon(square, binder(&args, SQLiteDialect{}))

	assert.Equal(t, "point_in_polygon(?, x, y) = 1", sql)
	assert.Equal(t, []any{"POLYGON((0 0,10 0,10 10,0 10,0 0))"}, args)
}

func TestClickHousePointInPolygon(t *testing.T) {
	var args []any
	sql := ClickHouseDialect{}.PointInPolygon(square, binder(&args, ClickHouseDialect{}))

	assert.Empty(t, args)
	assert.Contains(t, sql, "pointInPolygon((assumeNotNull(x), assumeNotNull(y)), [(0, 0), (10, 0), (10, 10), (0, 10), (0, 0)])")
}

func TestPostgresPointInPolygon(t *testing.T) {
	withHole := orb.Polygon{square[0], {{2, 2}, {3, 2}, {3, 3}, {2, 2}}}
	args := []any{"existing"}
	sql := PostgresDialect{}.PointInPolygon(withHole, binder(&args, PostgresDialect{}))

	assert.Equal(t, "(point(x, y) <@ $2::polygon AND NOT point(x, y) <@ $3::polygon)", sql)
	assert.Equal(t, "((0,0),(10,0),(10,10),(0,10),(0,0))", args[1])
	assert.Equal(t, "((2,2),(3,2),(3,3),(2,2))", args[2])
}

func TestNormalize(t *testing.T) {
	v := int64(1)
	var nilPtr *int64
	tests := []struct {
		column string
		in     any
		want   any
	}{
		{"raim", int64(1), true},
		{"raim", int64(0), false},
		{"sog", int64(3), 3.0},
		{"mmsi", uint32(42), int64(42)},
		{"tagblock_station", []byte("abc"), "abc"},
		{"true_heading", &v, int64(1)},
		{"true_heading", nilPtr, nil},
		{"count", uint64(7), int64(7)},
		{"x", float32(1.5), 1.5},
		{"ship_name", nil, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.column, tt.in), "%s %v", tt.column, tt.in)
	}
}
