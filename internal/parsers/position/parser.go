// Package position parses class A position reports (message types 1, 2 and 3).
package position

import (
	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

// Parser parses class A position reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "position_report" }
func (p *Parser) Types() []int    { return []int{1, 2, 3} }
func (p *Parser) MinBits(int) int { return 168 }
func (p *Parser) Priority() int   { return 10 }

func (p *Parser) Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error) {
	r := &ais.PositionReport{}
	r.ID = id
	r.Tagblock = tb
	r.RepeatIndicator = int(f.Uint(2))
	r.MMSI = f.Uint(30)
	r.NavStatus = int(f.Uint(4))
	r.ROT, r.ROTOverRange = ais.RateOfTurn(f.Int(8))
	r.SOG = ais.Speed(f.Uint(10))
	r.PositionAccuracy = int(f.Uint(1))
	r.X, r.Y = ais.Coordinates(f.Int(28), f.Int(27))
	r.COG = ais.Course(f.Uint(12))
	r.TrueHeading = int(f.Uint(9))
	r.Timestamp = int(f.Uint(6))
	r.SpecialManoeuvre = int(f.Uint(2))
	r.Spare = int(f.Uint(3))
	r.RAIM = f.Bool()
	r.SyncState = int(f.Uint(2))

	if id == 3 {
		// ITDMA: slot increment, slots to allocate, keep flag.
		f.Skip(17)
	} else {
		// SOTDMA: the sub message meaning depends on the slot timeout.
		timeout := int(f.Uint(3))
		sub := int(f.Uint(14))
		r.SlotTimeout = &timeout
		switch timeout {
		case 2, 4, 6:
			r.SlotNumber = &sub
		}
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	return r, nil
}
