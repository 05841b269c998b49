// Package classb parses class B position reports (message types 18 and 19).
package classb

import (
	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

// Parser parses standard and extended class B position reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string  { return "class_b_position" }
func (p *Parser) Types() []int  { return []int{18, 19} }
func (p *Parser) Priority() int { return 10 }

func (p *Parser) MinBits(id int) int {
	if id == 19 {
		return 312
	}
	return 168
}

func (p *Parser) Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error) {
	r := &ais.ClassBPosition{}
	r.ID = id
	r.Tagblock = tb
	r.RepeatIndicator = int(f.Uint(2))
	r.MMSI = f.Uint(30)
	f.Skip(8)
	r.SOG = ais.Speed(f.Uint(10))
	r.PositionAccuracy = int(f.Uint(1))
	r.X, r.Y = ais.Coordinates(f.Int(28), f.Int(27))
	r.COG = ais.Course(f.Uint(12))
	r.TrueHeading = int(f.Uint(9))
	r.Timestamp = int(f.Uint(6))

	if id == 18 {
		f.Skip(2)
		r.UnitFlag = boolPtr(f.Bool())
		r.DisplayFlag = boolPtr(f.Bool())
		r.DSCFlag = boolPtr(f.Bool())
		r.BandFlag = boolPtr(f.Bool())
		r.M22Flag = boolPtr(f.Bool())
		r.ModeFlag = boolPtr(f.Bool())
		r.RAIM = f.Bool()
		r.CommStateFlag = boolPtr(f.Bool())
		f.Skip(19)
	} else {
		f.Skip(4)
		name := f.Text(20)
		shipType := int(f.Uint(8))
		f.Skip(30) // Dimensions live in the static tables.
		f.Skip(4)  // Position fixing device.
		r.RAIM = f.Bool()
		r.DTE = boolPtr(f.Bool())
		r.ModeFlag = boolPtr(f.Bool())
		r.ShipName = &name
		r.TypeOfShipAndCargo = &shipType
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func boolPtr(b bool) *bool { return &b }
