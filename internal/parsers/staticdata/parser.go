// Package staticdata parses class B static data reports (message type 24).
package staticdata

import (
	"fmt"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

// Parser parses both parts of a static data report.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "static_data_report" }
func (p *Parser) Types() []int    { return []int{24} }
func (p *Parser) MinBits(int) int { return 160 }
func (p *Parser) Priority() int   { return 10 }

func (p *Parser) Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error) {
	r := &ais.StaticDataPart{}
	r.ID = id
	r.Tagblock = tb
	r.RepeatIndicator = int(f.Uint(2))
	r.MMSI = f.Uint(30)
	r.PartNum = int(f.Uint(2))

	switch r.PartNum {
	case 0:
		name := f.Text(20)
		r.ShipName = &name
	case 1:
		shipType := int(f.Uint(8))
		vendor := f.Text(3)
		model := int(f.Uint(4))
		serial := int(f.Uint(20))
		callSign := f.Text(7)
		r.TypeOfShipAndCargo = &shipType
		r.VendorID = &vendor
		r.Model = &model
		r.Serial = &serial
		r.CallSign = &callSign
		// Auxiliary craft (MMSI 98XXXYYYY) carry the mothership MMSI here
		// instead of dimensions.
		if r.MMSI/10000000 != 98 {
			bow, stern := int(f.Uint(9)), int(f.Uint(9))
			port, starboard := int(f.Uint(6)), int(f.Uint(6))
			r.ToBow, r.ToStern, r.ToPort, r.ToStarboard = &bow, &stern, &port, &starboard
		}
	default:
		return nil, fmt.Errorf("part number %d not defined", r.PartNum)
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	return r, nil
}
