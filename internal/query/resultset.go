package query

import (
	"github.com/paulmach/orb"

	"aisdb/internal/storage"
)

// CRS is the coordinate reference system of result geometries.
const CRS = "EPSG:4326"

// ResultSet is the outcome of one query: the table's columns, its rows in
// query order, and a WGS84 point per row that has a position. An empty
// ResultSet has the same columns as a populated one.
type ResultSet struct {
	Table   string
	Columns []string
	Rows    [][]any

	// Points[i] is the position of Rows[i], or nil when the row has none.
	Points []*orb.Point
}

func newResultSet(p Plan, res *storage.Result) *ResultSet {
	rs := &ResultSet{Table: p.Table, Columns: p.Columns}
	if res.Len() == 0 {
		rs.Rows = [][]any{}
		rs.Points = []*orb.Point{}
		return rs
	}
	if len(res.Columns) > 0 {
		rs.Columns = res.Columns
	}
	rs.Rows = res.Rows
	rs.Points = make([]*orb.Point, len(res.Rows))

	xi, yi := rs.Index(storage.LongitudeColumn), rs.Index(storage.LatitudeColumn)
	if xi < 0 || yi < 0 {
		return rs
	}
	for i, row := range res.Rows {
		x, okx := row[xi].(float64)
		y, oky := row[yi].(float64)
		if okx && oky {
			rs.Points[i] = &orb.Point{x, y}
		}
	}
	return rs
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Index returns the position of the named column, or -1.
func (rs *ResultSet) Index(column string) int {
	for i, c := range rs.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the named column of row i, or nil when the column does not
// exist.
func (rs *ResultSet) Value(i int, column string) any {
	idx := rs.Index(column)
	if idx < 0 {
		return nil
	}
	return rs.Rows[i][idx]
}

// Record returns row i as a column name to value map.
func (rs *ResultSet) Record(i int) map[string]any {
	out := make(map[string]any, len(rs.Columns))
	for j, c := range rs.Columns {
		out[c] = rs.Rows[i][j]
	}
	return out
}

// Located returns the indexes of the rows that have a position.
func (rs *ResultSet) Located() []int {
	var out []int
	for i, p := range rs.Points {
		if p != nil {
			out = append(out, i)
		}
	}
	return out
}

// Bound returns the bounding box of every located row.
func (rs *ResultSet) Bound() (orb.Bound, bool) {
	var mp orb.MultiPoint
	for _, p := range rs.Points {
		if p != nil {
			mp = append(mp, *p)
		}
	}
	if len(mp) == 0 {
		return orb.Bound{}, false
	}
	return mp.Bound(), true
}
