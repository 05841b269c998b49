// Package storage persists decoded AIS messages and runs queries against the
// configured store. One Handle owns one connection; SQLite, ClickHouse and
// PostgreSQL are supported.
package storage

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type of a stored column. Each backend maps it to
// a native type.
type ColumnType int

const (
	TypeInt   ColumnType = iota // 64-bit signed integer.
	TypeMMSI                    // 32-bit unsigned vessel identity.
	TypeFloat                   // Double precision.
	TypeBool
	TypeText
	TypeJSON // Serialized JSON document, stored as text.
)

// Column is one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes a stored table.
type Table struct {
	Name    string
	Columns []Column

	// Dynamic tables hold position reports and carry the capture time.
	Dynamic bool
}

// Table names.
const (
	TablePositions    = "ais_msg_123"
	TableStaticVoyage = "ais_msg_5"
	TableClassB       = "ais_msg_18_19"
	TableStaticDataB  = "ais_msg_24"
)

// Columns the query layer refers to by name.
const (
	TimeColumn       = "tagblock_timestamp"
	IdentityColumn   = "mmsi"
	LongitudeColumn  = "x"
	LatitudeColumn   = "y"
	SpeedColumn      = "sog"
	CourseColumn     = "cog"
	RateOfTurnColumn = "rot"
)

func cols(spec ...any) []Column {
	out := make([]Column, 0, len(spec)/2)
	for i := 0; i < len(spec); i += 2 {
		out = append(out, Column{Name: spec[i].(string), Type: spec[i+1].(ColumnType)})
	}
	return out
}

var (
	positionsTable = Table{
		Name:    TablePositions,
		Dynamic: true,
		Columns: cols(
			"id", TypeInt,
			"repeat_indicator", TypeInt,
			"mmsi", TypeMMSI,
			"nav_status", TypeInt,
			"rot_over_range", TypeBool,
			"rot", TypeFloat,
			"sog", TypeFloat,
			"position_accuracy", TypeInt,
			"x", TypeFloat,
			"y", TypeFloat,
			"cog", TypeFloat,
			"true_heading", TypeInt,
			"timestamp", TypeInt,
			"special_manoeuvre", TypeInt,
			"spare", TypeInt,
			"raim", TypeBool,
			"sync_state", TypeInt,
			"slot_timeout", TypeInt,
			"slot_number", TypeInt,
			"tagblock_group", TypeJSON,
			"tagblock_line_count", TypeInt,
			"tagblock_station", TypeText,
			"tagblock_timestamp", TypeInt,
		),
	}

	staticVoyageTable = Table{
		Name: TableStaticVoyage,
		Columns: cols(
			"id", TypeInt,
			"repeat_indicator", TypeInt,
			"mmsi", TypeMMSI,
			"ais_version", TypeInt,
			"imo", TypeInt,
			"call_sign", TypeText,
			"ship_name", TypeText,
			"type_of_ship_and_cargo", TypeInt,
			"to_bow", TypeInt,
			"to_stern", TypeInt,
			"to_port", TypeInt,
			"to_starboard", TypeInt,
			"position_fixing_device", TypeInt,
			"eta", TypeText,
			"max_present_static_draught", TypeFloat,
			"destination", TypeText,
			"dte", TypeBool,
		),
	}

	classBTable = Table{
		Name:    TableClassB,
		Dynamic: true,
		Columns: cols(
			"id", TypeInt,
			"repeat_indicator", TypeInt,
			"mmsi", TypeMMSI,
			"sog", TypeFloat,
			"position_accuracy", TypeInt,
			"x", TypeFloat,
			"y", TypeFloat,
			"cog", TypeFloat,
			"true_heading", TypeInt,
			"timestamp", TypeInt,
			"unit_flag", TypeBool,
			"display_flag", TypeBool,
			"dsc_flag", TypeBool,
			"band_flag", TypeBool,
			"m22_flag", TypeBool,
			"mode_flag", TypeBool,
			"raim", TypeBool,
			"commstate_flag", TypeBool,
			"ship_name", TypeText,
			"type_of_ship_and_cargo", TypeInt,
			"dte", TypeBool,
			"tagblock_group", TypeJSON,
			"tagblock_line_count", TypeInt,
			"tagblock_station", TypeText,
			"tagblock_timestamp", TypeInt,
		),
	}

	staticDataTable = Table{
		Name: TableStaticDataB,
		Columns: cols(
			"id", TypeInt,
			"repeat_indicator", TypeInt,
			"mmsi", TypeMMSI,
			"part_num", TypeInt,
			"ship_name", TypeText,
			"type_of_ship_and_cargo", TypeInt,
			"vendor_id", TypeText,
			"model", TypeInt,
			"serial", TypeInt,
			"call_sign", TypeText,
			"to_bow", TypeInt,
			"to_stern", TypeInt,
			"to_port", TypeInt,
			"to_starboard", TypeInt,
			"tagblock_station", TypeText,
			"tagblock_timestamp", TypeInt,
		),
	}
)

// Tables returns the tables of the minimal schema, plus the class B tables
// when extended is set.
func Tables(extended bool) []Table {
	tables := []Table{positionsTable, staticVoyageTable}
	if extended {
		tables = append(tables, classBTable, staticDataTable)
	}
	return tables
}

// LookupTable returns the catalog entry for name.
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables(true) {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ColumnNames returns the column names of t in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether t has a column called name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// columnTypes maps every catalog column name to its type. Names shared
// between tables always have the same type.
var columnTypes = func() map[string]ColumnType {
	m := make(map[string]ColumnType)
	for _, t := range Tables(true) {
		for _, c := range t.Columns {
			m[c.Name] = c.Type
		}
	}
	return m
}()

// ColumnTypeOf returns the type of a catalog column.
func ColumnTypeOf(name string) (ColumnType, bool) {
	t, ok := columnTypes[name]
	return t, ok
}

// createTableSQL renders an idempotent CREATE TABLE statement. native maps
// logical types to the backend's column types; suffix is appended after the
// closing parenthesis.
func createTableSQL(t Table, native func(ColumnType) string, suffix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&sb, "\t%s %s", c.Name, native(c.Type))
		if i < len(t.Columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(")")
	if suffix != "" {
		sb.WriteString("\n")
		sb.WriteString(suffix)
	}
	return sb.String()
}

// insertSQL renders a positional INSERT statement for t.
func insertSQL(t Table, d Dialect) string {
	ph := make([]string, len(t.Columns))
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(t.ColumnNames(), ", "), strings.Join(ph, ", "))
}
