// Package voyage parses class A static and voyage related data (message type 5).
package voyage

import (
	"fmt"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

// Parser parses static and voyage reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "static_voyage" }
func (p *Parser) Types() []int    { return []int{5} }
func (p *Parser) MinBits(int) int { return 422 }
func (p *Parser) Priority() int   { return 10 }

func (p *Parser) Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error) {
	r := &ais.StaticVoyage{}
	r.ID = id
	r.Tagblock = tb
	r.RepeatIndicator = int(f.Uint(2))
	r.MMSI = f.Uint(30)
	r.AISVersion = int(f.Uint(2))
	r.IMO = f.Uint(30)
	r.CallSign = f.Text(7)
	r.ShipName = f.Text(20)
	r.TypeOfShipAndCargo = int(f.Uint(8))
	r.ToBow = int(f.Uint(9))
	r.ToStern = int(f.Uint(9))
	r.ToPort = int(f.Uint(6))
	r.ToStarboard = int(f.Uint(6))
	r.PositionFixingDevice = int(f.Uint(4))
	month := f.Uint(4)
	day := f.Uint(5)
	hour := f.Uint(5)
	minute := f.Uint(6)
	r.Draught = float64(f.Uint(8)) / 10
	r.Destination = f.Text(20)
	// Some transmitters drop the trailing DTE bit.
	if f.Remaining() > 0 {
		r.DTE = f.Bool()
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	r.ETA = formatETA(month, day, hour, minute)
	return r, nil
}

// formatETA renders the ETA fields as "MM-DD HH:MM". Unavailable parts use
// their sentinel values (month/day 0, hour 24, minute 60) unchanged so the
// column keeps what was broadcast.
func formatETA(month, day, hour, minute uint32) string {
	if month == 0 && day == 0 && hour == 24 && minute == 60 {
		return ""
	}
	return fmt.Sprintf("%02d-%02d %02d:%02d", month, day, hour, minute)
}
