// Package aistest provides NMEA sample lines and file helpers for tests.
package aistest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Sample lines. Timestamps fall on 2016-07-27 and 2016-07-28 UTC.
const (
	// Type 1, MMSI 367596940, 10.2 kn, COG 45.5, (-122.4, 37.8), 2016-07-27 23:40:00.
	Type1 = "\\s:rORBCOMM000,c:1469662800*2D\\!AIVDM,1,1,,A,15NTES001Vo?d`0E`Ah1iiLt28CB,0*23"

	// Type 2, MMSI 211234560, 0 kn, COG 200, ROT 17.856, (10.5, 54.25), 2016-07-28 10:00:00.
	Type2 = `\c:1469700000*54\!AIVDM,1,1,,A,239Lg015000h4;0O2dL7l6@H0<07,0*5D`

	// Type 3, MMSI 367596940, every kinematic field not available, 2016-07-28 23:53:20.
	Type3 = `\s:rORBCOMM001,c:1469750000*24\!AIVDM,1,1,,B,35NTES5P?w<tSF0l4Q@>4?wp0000,0*14`

	// Type 4 base station report. Never stored.
	Type4 = `!AIVDM,1,1,,A,403OviP000000000000000000000,0*21`

	// Type 5 in two grouped fragments, MMSI 351759000 "EVER DIADEM".
	Type5Part1 = `\g:1-2-4242,s:rORBCOMM000,c:1469662900*5E\!AIVDM,2,1,3,A,55?MbV02;H;s<HtKP00EHE:0@T4@Dl0000000016L961O5Gf0NSQEp6ClRh0,0*0C`
	Type5Part2 = `\g:2-2-4242*5D\!AIVDM,2,2,3,A,00000000000,2*27`

	// Type 18, MMSI 338087471, 0.1 kn, COG 79.5, (-74.0725, 40.6846).
	Type18 = "\\s:rORBCOMM000,c:1469663000*24\\!AIVDM,1,1,,B,B52K>;h00Fc>i:5lN`PigwpUoP06,0*4C"

	// Type 19, MMSI 367059850 "CAPT.J.RIMES".
	Type19 = `\c:1469663100*51\!AIVDM,1,1,,B,C5N3SRP0EnJGEC4>NhWAKwo062PaLELTBJ:V00000000S0D:R22P,0*69`

	// Type 24 parts A and B, MMSI 271041815 "PROGUY".
	Type24A = `\c:1469663200*52\!AIVDM,1,1,,A,H42O55i18tMET000000000000000,0*5F`
	Type24B = `\c:1469663200*52\!AIVDM,1,1,,A,H42O55lti4h830qD3nink000?050,0*0F`

	// Bad checksum.
	Corrupt = "!AIVDM,1,1,,A,15NTES001Vo?d`0E`Ah1iiLt28CB,0*24"
)

// Known identities and timestamps of the samples.
const (
	MMSIType1  = 367596940
	MMSIType2  = 211234560
	MMSIType5  = 351759000
	MMSIType18 = 338087471
	MMSIType19 = 367059850
	MMSIType24 = 271041815

	TimeType1 = 1469662800
	TimeType2 = 1469700000
	TimeType3 = 1469750000
)

// Mixed returns one of every sample, including a corrupt line and a kind
// that is never stored.
func Mixed() []string {
	return []string{Type1, Type2, Type3, Type4, Type5Part1, Type5Part2, Type18, Type19, Type24A, Type24B, Corrupt}
}

// WriteFile writes lines to a file in a per-test temp directory and returns
// its path.
func WriteFile(t testing.TB, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Repeat returns lines repeated n times.
func Repeat(lines []string, n int) []string {
	out := make([]string, 0, len(lines)*n)
	for i := 0; i < n; i++ {
		out = append(out, lines...)
	}
	return out
}
