package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// KML structures for XML marshalling, following KML 2.2.

type kmlRoot struct {
	XMLName   xml.Name    `xml:"kml"`
	Namespace string      `xml:"xmlns,attr"`
	Document  kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description,omitempty"`
	Styles      []kmlStyle     `xml:"Style,omitempty"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID        string       `xml:"id,attr"`
	IconStyle kmlIconStyle `xml:"IconStyle"`
}

type kmlIconStyle struct {
	Scale float64 `xml:"scale,omitempty"`
	Icon  kmlIcon `xml:"Icon"`
}

type kmlIcon struct {
	Href string `xml:"href"`
}

type kmlPlacemark struct {
	Name         string           `xml:"name"`
	Description  string           `xml:"description,omitempty"`
	StyleURL     string           `xml:"styleUrl,omitempty"`
	TimeStamp    *kmlTimeStamp    `xml:"TimeStamp,omitempty"`
	Point        kmlPoint         `xml:"Point"`
	ExtendedData *kmlExtendedData `xml:"ExtendedData,omitempty"`
}

type kmlTimeStamp struct {
	When string `xml:"when"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"` // lon,lat,altitude
}

type kmlExtendedData struct {
	Data []kmlData `xml:"Data"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// WriteKML writes one placemark per located row, named by MMSI and stamped
// with the capture time when the table has one.
func WriteKML(w io.Writer, rs *query.ResultSet) error {
	located := rs.Located()
	placemarks := make([]kmlPlacemark, 0, len(located))
	for _, i := range located {
		p := rs.Points[i]
		pm := kmlPlacemark{
			Name:     formatValue(rs.Value(i, storage.IdentityColumn)),
			StyleURL: "#vesselStyle",
			Point: kmlPoint{
				Coordinates: fmt.Sprintf("%.6f,%.6f,0", p.X(), p.Y()),
			},
			ExtendedData: &kmlExtendedData{},
		}
		if ts, ok := rs.Value(i, storage.TimeColumn).(int64); ok {
			when := query.TagblockTimestampToDate(ts)
			pm.Description = when + " UTC"
			pm.TimeStamp = &kmlTimeStamp{When: when[:10] + "T" + when[11:] + "Z"}
		}
		for j, c := range rs.Columns {
			if v := rs.Rows[i][j]; v != nil {
				pm.ExtendedData.Data = append(pm.ExtendedData.Data, kmlData{Name: c, Value: formatValue(v)})
			}
		}
		placemarks = append(placemarks, pm)
	}

	doc := kmlRoot{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: kmlDocument{
			Name:        "AIS " + rs.Table,
			Description: fmt.Sprintf("%d vessel positions.", len(placemarks)),
			Styles: []kmlStyle{{
				ID: "vesselStyle",
				IconStyle: kmlIconStyle{
					Scale: 0.8,
					Icon:  kmlIcon{Href: "http://maps.google.com/mapfiles/kml/shapes/sailing.png"},
				},
			}},
			Placemarks: placemarks,
		},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
