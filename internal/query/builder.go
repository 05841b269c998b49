package query

import (
	"fmt"
	"strconv"
	"strings"

	"aisdb/internal/storage"
)

// Plan is a parameterized query ready to run.
type Plan struct {
	Table   string
	Columns []string
	SQL     string
	Args    []any
}

var directionClauses = map[Direction]string{
	North: "(cog >= 315 OR cog < 45)",
	East:  "(cog >= 45 AND cog < 135)",
	South: "(cog >= 135 AND cog < 225)",
	West:  "(cog >= 225 AND cog < 315)",
}

// Build composes c into one query against table. Every set filter becomes
// one AND-combined clause; filters on columns the table lacks are rejected.
// Build has no side effects.
func Build(table string, c Criteria, d storage.Dialect) (Plan, error) {
	tbl, ok := storage.LookupTable(table)
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown table %q", ErrInvalidCriteria, table)
	}
	if err := c.Validate(); err != nil {
		return Plan{}, err
	}

	var (
		conditions []string
		args       []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}
	need := func(column, filter string) error {
		if !tbl.HasColumn(column) {
			return fmt.Errorf("%w: %s filter does not apply to %s", ErrInvalidCriteria, filter, table)
		}
		return nil
	}

	switch len(c.MMSI) {
	case 0:
	case 1:
		conditions = append(conditions, storage.IdentityColumn+" = "+bind(c.MMSI[0]))
	default:
		marks := make([]string, len(c.MMSI))
		for i, id := range c.MMSI {
			marks[i] = bind(id)
		}
		conditions = append(conditions, storage.IdentityColumn+" IN ("+strings.Join(marks, ", ")+")")
	}

	if c.StartDate != "" {
		if err := need(storage.TimeColumn, KeyStartDate); err != nil {
			return Plan{}, err
		}
		start, _ := parseBoundary(c.StartDate, false)
		end, _ := parseBoundary(c.EndDate, true)
		conditions = append(conditions, fmt.Sprintf("%s BETWEEN %s AND %s", storage.TimeColumn, bind(start), bind(end)))
	}

	if c.Polygon != "" {
		if err := need(storage.LongitudeColumn, KeyPolygonBounds); err != nil {
			return Plan{}, err
		}
		poly, _ := parsePolygon(c.Polygon)
		conditions = append(conditions, d.PointInPolygon(poly, bind))
	}

	for _, r := range []struct {
		column, filter string
		value          *float64
		op             string
	}{
		{storage.SpeedColumn, KeyMinVelocity, c.MinVelocity, ">="},
		{storage.SpeedColumn, KeyMaxVelocity, c.MaxVelocity, "<="},
		{storage.RateOfTurnColumn, KeyMinTurnRate, c.MinTurnRate, ">="},
		{storage.RateOfTurnColumn, KeyMaxTurnRate, c.MaxTurnRate, "<="},
	} {
		if r.value == nil {
			continue
		}
		if err := need(r.column, r.filter); err != nil {
			return Plan{}, err
		}
		conditions = append(conditions, fmt.Sprintf("%s %s %s", r.column, r.op, bind(*r.value)))
	}

	if c.Direction != "" {
		if err := need(storage.CourseColumn, KeyDirection); err != nil {
			return Plan{}, err
		}
		conditions = append(conditions, directionClauses[c.Direction])
	}

	columns := tbl.ColumnNames()
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if tbl.Dynamic {
		query += " ORDER BY " + storage.TimeColumn + ", " + storage.IdentityColumn
	} else {
		query += " ORDER BY " + storage.IdentityColumn
	}
	if c.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(c.Limit)
	}

	return Plan{Table: table, Columns: columns, SQL: query, Args: args}, nil
}
