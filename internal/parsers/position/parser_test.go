package position

import (
	"testing"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	"aisdb/internal/registry"
)

func decode(t *testing.T, line string) ais.Message {
	t.Helper()
	s, err := nmea.Parse(line)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, ok := nmea.NewAssembler().Add(s)
	if !ok {
		t.Fatal("expected single-sentence packet")
	}
	r := registry.New()
	r.Register(&Parser{})
	msg, err := r.Decode(p)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return msg
}

func TestParserType1(t *testing.T) {
	msg := decode(t, "\\s:rORBCOMM000,c:1469662800*2D\\!AIVDM,1,1,,A,15NTES001Vo?d`0E`Ah1iiLt28CB,0*23")

	r, ok := msg.(*ais.PositionReport)
	if !ok {
		t.Fatalf("got %T, want *ais.PositionReport", msg)
	}
	if r.ID != 1 || r.MMSI != 367596940 {
		t.Errorf("ID/MMSI = %d/%d, want 1/367596940", r.ID, r.MMSI)
	}
	if r.NavStatus != 0 {
		t.Errorf("NavStatus = %d, want 0", r.NavStatus)
	}
	if r.ROT == nil || *r.ROT != 0 || r.ROTOverRange {
		t.Errorf("ROT = %v (over range %v), want 0", r.ROT, r.ROTOverRange)
	}
	if r.SOG == nil || *r.SOG != 10.2 {
		t.Errorf("SOG = %v, want 10.2", r.SOG)
	}
	if r.X == nil || r.Y == nil || *r.X < -122.40001 || *r.X > -122.39999 || *r.Y < 37.79999 || *r.Y > 37.80001 {
		t.Errorf("position = %v,%v, want -122.4,37.8", r.X, r.Y)
	}
	if r.COG == nil || *r.COG != 45.5 {
		t.Errorf("COG = %v, want 45.5", r.COG)
	}
	if r.TrueHeading != 46 || r.Timestamp != 30 {
		t.Errorf("TrueHeading/Timestamp = %d/%d, want 46/30", r.TrueHeading, r.Timestamp)
	}
	if !r.RAIM || r.PositionAccuracy != 1 {
		t.Errorf("RAIM/PositionAccuracy = %v/%d, want true/1", r.RAIM, r.PositionAccuracy)
	}
	if r.SlotTimeout == nil || *r.SlotTimeout != 2 {
		t.Errorf("SlotTimeout = %v, want 2", r.SlotTimeout)
	}
	if r.SlotNumber == nil || *r.SlotNumber != 1234 {
		t.Errorf("SlotNumber = %v, want 1234", r.SlotNumber)
	}
	if r.Tagblock.Station != "rORBCOMM000" || r.Tagblock.Timestamp != 1469662800 {
		t.Errorf("Tagblock = %+v", r.Tagblock)
	}
}

func TestParserType2SlotTimeoutWithoutSlotNumber(t *testing.T) {
	msg := decode(t, `\c:1469700000*54\!AIVDM,1,1,,A,239Lg015000h4;0O2dL7l6@H0<07,0*5D`)

	r := msg.(*ais.PositionReport)
	if r.ID != 2 || r.MMSI != 211234560 {
		t.Errorf("ID/MMSI = %d/%d, want 2/211234560", r.ID, r.MMSI)
	}
	if r.ROT == nil || *r.ROT != 17.856 {
		t.Errorf("ROT = %v, want 17.856", r.ROT)
	}
	if r.COG == nil || *r.COG != 200 {
		t.Errorf("COG = %v, want 200", r.COG)
	}
	if r.SlotTimeout == nil || *r.SlotTimeout != 3 {
		t.Errorf("SlotTimeout = %v, want 3", r.SlotTimeout)
	}
	if r.SlotNumber != nil {
		t.Errorf("SlotNumber = %d, want nil", *r.SlotNumber)
	}
}

func TestParserType3NotAvailable(t *testing.T) {
	msg := decode(t, `\s:rORBCOMM001,c:1469750000*24\!AIVDM,1,1,,B,35NTES5P?w<tSF0l4Q@>4?wp0000,0*14`)

	r := msg.(*ais.PositionReport)
	if r.ID != 3 || r.NavStatus != 5 {
		t.Errorf("ID/NavStatus = %d/%d, want 3/5", r.ID, r.NavStatus)
	}
	if r.ROT != nil || r.SOG != nil || r.COG != nil {
		t.Errorf("ROT/SOG/COG = %v/%v/%v, want nil", r.ROT, r.SOG, r.COG)
	}
	if r.X != nil || r.Y != nil {
		t.Errorf("position = %v,%v, want nil", r.X, r.Y)
	}
	if r.TrueHeading != 511 || r.Timestamp != 60 {
		t.Errorf("TrueHeading/Timestamp = %d/%d, want 511/60", r.TrueHeading, r.Timestamp)
	}
	if r.SlotTimeout != nil || r.SlotNumber != nil {
		t.Error("ITDMA report should not carry slot fields")
	}
}

func TestParserShortPayload(t *testing.T) {
	s, err := nmea.Parse(`!AIVDM,1,1,,A,15NTES001Vo?d,0*7D`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, _ := nmea.NewAssembler().Add(s)
	r := registry.New()
	r.Register(&Parser{})
	if _, err := r.Decode(p); err == nil {
		t.Error("expected error for truncated payload")
	}
}
