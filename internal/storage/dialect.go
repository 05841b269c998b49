package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Dialect covers the SQL differences between backends that the query
// builder has to care about.
type Dialect interface {
	// Name returns the backend name ("sqlite", "clickhouse", "postgres").
	Name() string

	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string

	// PointInPolygon returns a predicate that is true when the stored x/y
	// pair lies inside poly. bind registers an argument and returns its
	// placeholder.
	PointInPolygon(poly orb.Polygon, bind func(any) string) string
}

// DialectFor returns the dialect for a backend name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case BackendSQLite:
		return SQLiteDialect{}, nil
	case BackendClickHouse:
		return ClickHouseDialect{}, nil
	case BackendPostgres:
		return PostgresDialect{}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

// SQLiteDialect uses "?" markers and the point_in_polygon SQL function
// registered by this package.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string           { return BackendSQLite }
func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) PointInPolygon(poly orb.Polygon, bind func(any) string) string {
	return fmt.Sprintf("%s(%s, x, y) = 1", pointInPolygonFunc, bind(wkt.MarshalString(poly)))
}

// ClickHouseDialect uses "?" markers and the native pointInPolygon
// function. Coordinates are inlined as numeric literals.
type ClickHouseDialect struct{}

func (ClickHouseDialect) Name() string           { return BackendClickHouse }
func (ClickHouseDialect) Placeholder(int) string { return "?" }

func (ClickHouseDialect) PointInPolygon(poly orb.Polygon, _ func(any) string) string {
	rings := make([]string, len(poly))
	for i, ring := range poly {
		pts := make([]string, len(ring))
		for j, p := range ring {
			pts[j] = "(" + formatFloat(p[0]) + ", " + formatFloat(p[1]) + ")"
		}
		rings[i] = "[" + strings.Join(pts, ", ") + "]"
	}
	return fmt.Sprintf("(x IS NOT NULL AND y IS NOT NULL AND pointInPolygon((assumeNotNull(x), assumeNotNull(y)), %s))",
		strings.Join(rings, ", "))
}

// PostgresDialect uses "$n" markers and the geometric polygon type. Holes
// are excluded with additional containment tests.
type PostgresDialect struct{}

func (PostgresDialect) Name() string             { return BackendPostgres }
func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (PostgresDialect) PointInPolygon(poly orb.Polygon, bind func(any) string) string {
	if len(poly) == 0 {
		return "FALSE"
	}
	clauses := []string{fmt.Sprintf("point(x, y) <@ %s::polygon", bind(pgPolygon(poly[0])))}
	for _, hole := range poly[1:] {
		clauses = append(clauses, fmt.Sprintf("NOT point(x, y) <@ %s::polygon", bind(pgPolygon(hole))))
	}
	return "(" + strings.Join(clauses, " AND ") + ")"
}

// pgPolygon renders a ring in the PostgreSQL polygon input format.
func pgPolygon(ring orb.Ring) string {
	pts := make([]string, len(ring))
	for i, p := range ring {
		pts[i] = "(" + formatFloat(p[0]) + "," + formatFloat(p[1]) + ")"
	}
	return "(" + strings.Join(pts, ",") + ")"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
