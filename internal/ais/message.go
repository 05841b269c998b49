package ais

import (
	"math"

	"aisdb/internal/nmea"
)

// Message kinds handled by the store.
const (
	KindPositionA1     = 1
	KindPositionA2     = 2
	KindPositionA3     = 3
	KindStaticVoyage   = 5
	KindPositionB      = 18
	KindPositionBExt   = 19
	KindStaticDataPart = 24
)

// Message is a decoded AIS message, tagged with its kind discriminant.
type Message interface {
	Kind() int
	Identity() uint32
	Envelope() nmea.Tagblock
}

// Header carries the fields common to every message and the capture envelope.
type Header struct {
	ID              int           `json:"id"`
	RepeatIndicator int           `json:"repeat_indicator"`
	MMSI            uint32        `json:"mmsi"`
	Tagblock        nmea.Tagblock `json:"-"`
}

func (h *Header) Kind() int               { return h.ID }
func (h *Header) Identity() uint32        { return h.MMSI }
func (h *Header) Envelope() nmea.Tagblock { return h.Tagblock }

// PositionReport is a class A position report (kinds 1, 2, 3).
type PositionReport struct {
	Header
	NavStatus        int      `json:"nav_status"`
	ROTOverRange     bool     `json:"rot_over_range"`
	ROT              *float64 `json:"rot"`
	SOG              *float64 `json:"sog"`
	PositionAccuracy int      `json:"position_accuracy"`
	X                *float64 `json:"x"`
	Y                *float64 `json:"y"`
	COG              *float64 `json:"cog"`
	TrueHeading      int      `json:"true_heading"`
	Timestamp        int      `json:"timestamp"`
	SpecialManoeuvre int      `json:"special_manoeuvre"`
	Spare            int      `json:"spare"`
	RAIM             bool     `json:"raim"`
	SyncState        int      `json:"sync_state"`
	SlotTimeout      *int     `json:"slot_timeout"`
	SlotNumber       *int     `json:"slot_number"`
}

// StaticVoyage is a class A static and voyage related report (kind 5).
type StaticVoyage struct {
	Header
	AISVersion           int     `json:"ais_version"`
	IMO                  uint32  `json:"imo"`
	CallSign             string  `json:"call_sign"`
	ShipName             string  `json:"ship_name"`
	TypeOfShipAndCargo   int     `json:"type_of_ship_and_cargo"`
	ToBow                int     `json:"to_bow"`
	ToStern              int     `json:"to_stern"`
	ToPort               int     `json:"to_port"`
	ToStarboard          int     `json:"to_starboard"`
	PositionFixingDevice int     `json:"position_fixing_device"`
	ETA                  string  `json:"eta"`
	Draught              float64 `json:"max_present_static_draught"`
	Destination          string  `json:"destination"`
	DTE                  bool    `json:"dte"`
}

// ClassBPosition is a class B position report (kind 18) or extended class B
// report (kind 19). Kind 19 carries name, type and DTE; kind 18 carries the
// capability flags.
type ClassBPosition struct {
	Header
	SOG                *float64 `json:"sog"`
	PositionAccuracy   int      `json:"position_accuracy"`
	X                  *float64 `json:"x"`
	Y                  *float64 `json:"y"`
	COG                *float64 `json:"cog"`
	TrueHeading        int      `json:"true_heading"`
	Timestamp          int      `json:"timestamp"`
	UnitFlag           *bool    `json:"unit_flag"`
	DisplayFlag        *bool    `json:"display_flag"`
	DSCFlag            *bool    `json:"dsc_flag"`
	BandFlag           *bool    `json:"band_flag"`
	M22Flag            *bool    `json:"m22_flag"`
	ModeFlag           *bool    `json:"mode_flag"`
	RAIM               bool     `json:"raim"`
	CommStateFlag      *bool    `json:"commstate_flag"`
	ShipName           *string  `json:"ship_name"`
	TypeOfShipAndCargo *int     `json:"type_of_ship_and_cargo"`
	DTE                *bool    `json:"dte"`
}

// StaticDataPart is one half of a class B static data report (kind 24).
// Part 0 carries the name, part 1 everything else.
type StaticDataPart struct {
	Header
	PartNum            int     `json:"part_num"`
	ShipName           *string `json:"ship_name"`
	TypeOfShipAndCargo *int    `json:"type_of_ship_and_cargo"`
	VendorID           *string `json:"vendor_id"`
	Model              *int    `json:"model"`
	Serial             *int    `json:"serial"`
	CallSign           *string `json:"call_sign"`
	ToBow              *int    `json:"to_bow"`
	ToStern            *int    `json:"to_stern"`
	ToPort             *int    `json:"to_port"`
	ToStarboard        *int    `json:"to_starboard"`
}

// Coordinates converts raw 1/10000 minute fields to degrees. The "not
// available" sentinels (181, 91) and anything outside WGS84 bounds yield nil.
func Coordinates(rawLon, rawLat int32) (x, y *float64) {
	lon := float64(rawLon) / 600000
	lat := float64(rawLat) / 600000
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return nil, nil
	}
	return &lon, &lat
}

// Speed converts a 1/10 knot field; 1023 means not available.
func Speed(raw uint32) *float64 {
	if raw == 1023 {
		return nil
	}
	v := float64(raw) / 10
	return &v
}

// Course converts a 1/10 degree field; 3600 and above mean not available.
func Course(raw uint32) *float64 {
	if raw >= 3600 {
		return nil
	}
	v := float64(raw) / 10
	return &v
}

// RateOfTurn converts the encoded ROT indicator to degrees per minute.
// -128 means not available. Values beyond ±126 flag a turn rate above the
// encodable range; the sign is kept at the maximum magnitude.
func RateOfTurn(raw int32) (rot *float64, overRange bool) {
	if raw == -128 {
		return nil, false
	}
	overRange = raw > 126 || raw < -126
	v := math.Pow(float64(raw)/4.733, 2)
	if raw < 0 {
		v = -v
	}
	v = math.Round(v*1000) / 1000
	return &v, overRange
}
