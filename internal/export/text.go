package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/encoding/wkt"

	"aisdb/internal/query"
)

// WriteCSV writes a header row and one record per result row.
func WriteCSV(w io.Writer, rs *query.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as an array of column name to value objects.
func WriteJSON(w io.Writer, rs *query.ResultSet) error {
	records := make([]map[string]any, rs.Len())
	for i := range rs.Rows {
		records[i] = rs.Record(i)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteWKT writes one POINT per located row.
func WriteWKT(w io.Writer, rs *query.ResultSet) error {
	bw := bufio.NewWriter(w)
	for _, p := range rs.Points {
		if p == nil {
			continue
		}
		if _, err := fmt.Fprintln(bw, wkt.MarshalString(*p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
