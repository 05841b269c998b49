package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// arrowSchema maps result columns to nullable arrow fields by catalog type.
// Columns outside the catalog are written as strings.
func arrowSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		var dt arrow.DataType = arrow.BinaryTypes.String
		if t, ok := storage.ColumnTypeOf(c); ok {
			switch t {
			case storage.TypeInt, storage.TypeMMSI:
				dt = arrow.PrimitiveTypes.Int64
			case storage.TypeFloat:
				dt = arrow.PrimitiveTypes.Float64
			case storage.TypeBool:
				dt = arrow.FixedWidthTypes.Boolean
			}
		}
		fields[i] = arrow.Field{Name: c, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet writes rs as one snappy-compressed row group.
func WriteParquet(w io.Writer, rs *query.ResultSet) error {
	schema := arrowSchema(rs.Columns)
	mem := memory.NewGoAllocator()

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, row := range rs.Rows {
		for i, v := range row {
			if err := appendValue(b.Field(i), v); err != nil {
				return fmt.Errorf("column %s: %w", rs.Columns[i], err)
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	// The file writer closes its sink when it implements io.Closer.
	fw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, props, pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem)))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func appendValue(builder array.Builder, v any) error {
	if v == nil {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.Int64Builder:
		x, ok := v.(int64)
		if !ok {
			return fmt.Errorf("want int64, got %T", v)
		}
		b.Append(x)
	case *array.Float64Builder:
		x, ok := v.(float64)
		if !ok {
			return fmt.Errorf("want float64, got %T", v)
		}
		b.Append(x)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
		b.Append(x)
	case *array.StringBuilder:
		b.Append(formatValue(v))
	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}
	return nil
}
