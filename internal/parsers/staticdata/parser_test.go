package staticdata

import (
	"testing"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

func decode(t *testing.T, line string) *ais.StaticDataPart {
	t.Helper()
	s, err := nmea.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, _ := nmea.NewAssembler().Add(s)
	r := registry.New()
	r.Register(&Parser{})
	msg, err := r.Decode(p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	d, ok := msg.(*ais.StaticDataPart)
	if !ok {
		t.Fatalf("got %T, want *ais.StaticDataPart", msg)
	}
	return d
}

func TestParserPartA(t *testing.T) {
	d := decode(t, `\c:1469663200*52\!AIVDM,1,1,,A,H42O55i18tMET000000000000000,0*5F`)

	if d.MMSI != 271041815 || d.PartNum != 0 {
		t.Errorf("MMSI/PartNum = %d/%d, want 271041815/0", d.MMSI, d.PartNum)
	}
	if d.ShipName == nil || *d.ShipName != "PROGUY" {
		t.Errorf("ShipName = %v, want PROGUY", d.ShipName)
	}
	if d.CallSign != nil || d.ToBow != nil {
		t.Error("part A should only carry the name")
	}
}

func TestParserPartB(t *testing.T) {
	d := decode(t, `\c:1469663200*52\!AIVDM,1,1,,A,H42O55lti4h830qD3nink000?050,0*0F`)

	if d.PartNum != 1 {
		t.Fatalf("PartNum = %d, want 1", d.PartNum)
	}
	if d.ShipName != nil {
		t.Errorf("ShipName = %q, want nil", *d.ShipName)
	}

	tests := []struct {
		field string
		got   any
		want  any
	}{
		{"TypeOfShipAndCargo", *d.TypeOfShipAndCargo, 60},
		{"VendorID", *d.VendorID, "1D0"},
		{"Model", *d.Model, 2},
		{"Serial", *d.Serial, 12345},
		{"CallSign", *d.CallSign, "TC6163"},
		{"ToBow", *d.ToBow, 0},
		{"ToStern", *d.ToStern, 15},
		{"ToPort", *d.ToPort, 0},
		{"ToStarboard", *d.ToStarboard, 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.field, tt.got, tt.want)
		}
	}
}
