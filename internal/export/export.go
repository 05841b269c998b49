// Package export renders query result sets in file formats for downstream
// tools: CSV, JSON, GeoJSON, KML, WKT, Excel, Parquet and Shapefile.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"aisdb/internal/query"
)

// Format names an export representation.
type Format string

// Supported formats.
const (
	CSV       Format = "csv"
	JSON      Format = "json"
	GeoJSON   Format = "geojson"
	KML       Format = "kml"
	WKT       Format = "wkt"
	Excel     Format = "xlsx"
	Parquet   Format = "parquet"
	Shapefile Format = "shp"
)

// ErrUnknownFormat is returned for format names and file extensions no
// writer exists for.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists every supported format.
var Formats = []Format{CSV, JSON, GeoJSON, KML, WKT, Excel, Parquet, Shapefile}

// ParseFormat returns the format called name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(name, ".")))
	switch f {
	case "excel":
		return Excel, nil
	case "txt":
		return WKT, nil
	case "shapefile":
		return Shapefile, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	switch f {
	case CSV:
		return "text/csv"
	case JSON:
		return "application/json"
	case GeoJSON:
		return "application/geo+json"
	case KML:
		return "application/vnd.google-earth.kml+xml"
	case WKT:
		return "text/plain; charset=utf-8"
	case Excel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case Parquet:
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}

// Write renders rs to w. Shapefiles span several files and can only be
// written with ToFile.
func Write(w io.Writer, rs *query.ResultSet, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, rs)
	case JSON:
		return WriteJSON(w, rs)
	case GeoJSON:
		return WriteGeoJSON(w, rs)
	case KML:
		return WriteKML(w, rs)
	case WKT:
		return WriteWKT(w, rs)
	case Excel:
		return WriteExcel(w, rs)
	case Parquet:
		return WriteParquet(w, rs)
	case Shapefile:
		return fmt.Errorf("%w: shapefiles must be written to a path", ErrUnknownFormat)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// ToFile writes rs to path in the format given by its extension.
func ToFile(path string, rs *query.ResultSet) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if f == Shapefile {
		return WriteShapefile(path, rs)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(out, rs, f); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// formatValue renders a normalized store value as text. Nulls are empty.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
