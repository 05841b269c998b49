package storage

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
)

// ErrUnsupportedKind is returned for message kinds that have no table.
var ErrUnsupportedKind = errors.New("unsupported message kind")

// Row is one record ready for insertion. Values follow the column order of
// the table; nil means NULL.
type Row struct {
	Table  string
	Values []any
}

// RowFor maps a decoded message onto the row of its table. Optional fields
// the message does not carry become NULL.
func RowFor(msg ais.Message) (Row, error) {
	switch m := msg.(type) {
	case *ais.PositionReport:
		return positionRow(m)
	case *ais.StaticVoyage:
		return staticVoyageRow(m), nil
	case *ais.ClassBPosition:
		return classBRow(m)
	case *ais.StaticDataPart:
		return staticDataRow(m), nil
	case nil:
		return Row{}, fmt.Errorf("%w: nil message", ErrUnsupportedKind)
	}
	return Row{}, fmt.Errorf("%w: %d", ErrUnsupportedKind, msg.Kind())
}

// TableFor returns the table a message kind is stored in.
func TableFor(kind int) (string, error) {
	switch kind {
	case ais.KindPositionA1, ais.KindPositionA2, ais.KindPositionA3:
		return TablePositions, nil
	case ais.KindStaticVoyage:
		return TableStaticVoyage, nil
	case ais.KindPositionB, ais.KindPositionBExt:
		return TableClassB, nil
	case ais.KindStaticDataPart:
		return TableStaticDataB, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnsupportedKind, kind)
}

func positionRow(m *ais.PositionReport) (Row, error) {
	group, err := groupValue(m.Tagblock)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Table: TablePositions,
		Values: []any{
			int64(m.ID),
			int64(m.RepeatIndicator),
			m.MMSI,
			int64(m.NavStatus),
			m.ROTOverRange,
			optFloat(m.ROT),
			optFloat(m.SOG),
			int64(m.PositionAccuracy),
			optFloat(m.X),
			optFloat(m.Y),
			optFloat(m.COG),
			int64(m.TrueHeading),
			int64(m.Timestamp),
			int64(m.SpecialManoeuvre),
			int64(m.Spare),
			m.RAIM,
			int64(m.SyncState),
			optInt(m.SlotTimeout),
			optInt(m.SlotNumber),
			group,
			nonZero(m.Tagblock.LineCount),
			nonEmpty(m.Tagblock.Station),
			nonZero64(m.Tagblock.Timestamp),
		},
	}, nil
}

func staticVoyageRow(m *ais.StaticVoyage) Row {
	return Row{
		Table: TableStaticVoyage,
		Values: []any{
			int64(m.ID),
			int64(m.RepeatIndicator),
			m.MMSI,
			int64(m.AISVersion),
			int64(m.IMO),
			m.CallSign,
			m.ShipName,
			int64(m.TypeOfShipAndCargo),
			int64(m.ToBow),
			int64(m.ToStern),
			int64(m.ToPort),
			int64(m.ToStarboard),
			int64(m.PositionFixingDevice),
			nonEmpty(m.ETA),
			m.Draught,
			m.Destination,
			m.DTE,
		},
	}
}

func classBRow(m *ais.ClassBPosition) (Row, error) {
	group, err := groupValue(m.Tagblock)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Table: TableClassB,
		Values: []any{
			int64(m.ID),
			int64(m.RepeatIndicator),
			m.MMSI,
			optFloat(m.SOG),
			int64(m.PositionAccuracy),
			optFloat(m.X),
			optFloat(m.Y),
			optFloat(m.COG),
			int64(m.TrueHeading),
			int64(m.Timestamp),
			optBool(m.UnitFlag),
			optBool(m.DisplayFlag),
			optBool(m.DSCFlag),
			optBool(m.BandFlag),
			optBool(m.M22Flag),
			optBool(m.ModeFlag),
			m.RAIM,
			optBool(m.CommStateFlag),
			optString(m.ShipName),
			optInt(m.TypeOfShipAndCargo),
			optBool(m.DTE),
			group,
			nonZero(m.Tagblock.LineCount),
			nonEmpty(m.Tagblock.Station),
			nonZero64(m.Tagblock.Timestamp),
		},
	}, nil
}

func staticDataRow(m *ais.StaticDataPart) Row {
	return Row{
		Table: TableStaticDataB,
		Values: []any{
			int64(m.ID),
			int64(m.RepeatIndicator),
			m.MMSI,
			int64(m.PartNum),
			optString(m.ShipName),
			optInt(m.TypeOfShipAndCargo),
			optString(m.VendorID),
			optInt(m.Model),
			optInt(m.Serial),
			optString(m.CallSign),
			optInt(m.ToBow),
			optInt(m.ToStern),
			optInt(m.ToPort),
			optInt(m.ToStarboard),
			nonEmpty(m.Tagblock.Station),
			nonZero64(m.Tagblock.Timestamp),
		},
	}
}

// groupValue serializes the tag block group as a JSON object.
func groupValue(tb nmea.Tagblock) (any, error) {
	if tb.Group == nil {
		return nil, nil
	}
	b, err := json.Marshal(tb.Group)
	if err != nil {
		return nil, fmt.Errorf("encode tagblock group: %w", err)
	}
	return string(b), nil
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func optBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonZero(v int) any {
	if v == 0 {
		return nil
	}
	return int64(v)
}

func nonZero64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
