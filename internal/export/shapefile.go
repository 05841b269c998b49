package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"

	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// dBase field names are limited to 10 characters.
const maxFieldName = 10

// fieldNames shortens column names to unique dBase field names.
func fieldNames(columns []string) []string {
	seen := make(map[string]bool)
	out := make([]string, len(columns))
	for i, c := range columns {
		name := c
		if len(name) > maxFieldName {
			name = name[:maxFieldName]
		}
		for n := 1; seen[name]; n++ {
			suffix := strconv.Itoa(n)
			name = c[:min(len(c), maxFieldName-len(suffix))] + suffix
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// WriteShapefile writes the located rows as a point shapefile at path (with
// its .shx and .dbf siblings). Every column except x and y becomes an
// attribute.
func WriteShapefile(path string, rs *query.ResultSet) error {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	err = writeShapes(w, rs)
	w.Close()
	if err != nil {
		return err
	}
	return fixAttributeFile(strings.TrimSuffix(path, filepath.Ext(path)))
}

// fixAttributeFile moves the attribute table that go-shp v0.1.1 creates as
// "<base>dbf" to "<base>.dbf", where readers look for it.
func fixAttributeFile(base string) error {
	misnamed := base + "dbf"
	if _, err := os.Stat(misnamed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat attribute file: %w", err)
	}
	if err := os.Rename(misnamed, base+".dbf"); err != nil {
		return fmt.Errorf("rename attribute file: %w", err)
	}
	return nil
}

func writeShapes(w *shp.Writer, rs *query.ResultSet) error {
	var (
		columns []int
		fields  []shp.Field
	)
	names := fieldNames(rs.Columns)
	for i, c := range rs.Columns {
		if c == storage.LongitudeColumn || c == storage.LatitudeColumn {
			continue
		}
		columns = append(columns, i)
		t, _ := storage.ColumnTypeOf(c)
		switch t {
		case storage.TypeInt, storage.TypeMMSI:
			fields = append(fields, shp.NumberField(names[i], 18))
		case storage.TypeFloat:
			fields = append(fields, shp.FloatField(names[i], 18, 6))
		case storage.TypeBool:
			fields = append(fields, shp.StringField(names[i], 1))
		default:
			fields = append(fields, shp.StringField(names[i], 254))
		}
	}
	if err := w.SetFields(fields); err != nil {
		return fmt.Errorf("set fields: %w", err)
	}

	for _, i := range rs.Located() {
		p := rs.Points[i]
		n := int(w.Write(&shp.Point{X: p.X(), Y: p.Y()}))
		for f, col := range columns {
			v, ok := attribute(rs.Rows[i][col])
			if !ok {
				continue
			}
			if err := w.WriteAttribute(n, f, v); err != nil {
				return fmt.Errorf("write attribute %s: %w", rs.Columns[col], err)
			}
		}
	}
	return nil
}

// attribute converts a normalized value to a type the dBase writer accepts.
func attribute(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case int64:
		return int(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return "T", true
		}
		return "F", true
	case string:
		if len(x) > 254 {
			x = x[:254]
		}
		return x, true
	}
	return formatValue(v), true
}
