package export

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"

	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// FeatureCollection converts the located rows of rs to point features whose
// properties are the remaining columns. The collection carries the bounding
// box of the features when there are any.
func FeatureCollection(rs *query.ResultSet) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if b, ok := rs.Bound(); ok {
		fc.BBox = geojson.NewBBox(b)
	}
	for _, i := range rs.Located() {
		f := geojson.NewFeature(*rs.Points[i])
		for j, c := range rs.Columns {
			if c == storage.LongitudeColumn || c == storage.LatitudeColumn {
				continue
			}
			f.Properties[c] = rs.Rows[i][j]
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the located rows as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, rs *query.ResultSet) error {
	data, err := json.Marshal(FeatureCollection(rs))
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadGeoJSON parses a FeatureCollection written by WriteGeoJSON.
func ReadGeoJSON(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	return fc, nil
}
