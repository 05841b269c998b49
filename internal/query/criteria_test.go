package query

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	defaults := Criteria{MMSI: []uint32{1}, StartDate: "2016-07-27", EndDate: "2016-07-28", Direction: North}
	override := Criteria{MMSI: []uint32{2, 3}, MinVelocity: fptr(4)}

	got := Merge(defaults, override)
	assert.Equal(t, []uint32{2, 3}, got.MMSI)
	assert.Equal(t, "2016-07-27", got.StartDate)
	assert.Equal(t, North, got.Direction)
	assert.Equal(t, 4.0, *got.MinVelocity)

	got.MMSI[0] = 99
	assert.Equal(t, []uint32{2, 3}, override.MMSI)
	assert.Equal(t, []uint32{1}, defaults.MMSI)
	assert.Nil(t, defaults.MinVelocity)

	assert.Equal(t, defaults, Merge(defaults, Criteria{}))
	assert.True(t, Criteria{}.IsZero())
	assert.False(t, defaults.IsZero())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Criteria
		wantErr bool
	}{
		{"empty", Criteria{}, false},
		{"date range", Criteria{StartDate: "2016-07-27", EndDate: "2016-07-29"}, false},
		{"datetime range", Criteria{StartDate: "2016-07-27 10:00:00", EndDate: "2016-07-27T12:00:00"}, false},
		{"start only", Criteria{StartDate: "2016-07-27"}, true},
		{"end only", Criteria{EndDate: "2016-07-27"}, true},
		{"reversed", Criteria{StartDate: "2016-07-29", EndDate: "2016-07-27"}, true},
		{"bad date", Criteria{StartDate: "27/07/2016", EndDate: "2016-07-29"}, true},
		{"polygon", Criteria{Polygon: "POLYGON((0 0, 1 0, 1 1, 0 0))"}, false},
		{"not a polygon", Criteria{Polygon: "POINT(1 2)"}, true},
		{"garbage polygon", Criteria{Polygon: "POLYGON(("}, true},
		{"direction", Criteria{Direction: West}, false},
		{"bad direction", Criteria{Direction: "NW"}, true},
		{"negative limit", Criteria{Limit: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCriteria)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromMap(t *testing.T) {
	c, err := FromMap(map[string]any{
		"mmsi":          float64(367596940),
		"start_date":    "2016-07-27",
		"end_date":      "2016-07-29",
		"min_velocity":  2,
		"max_turn_rate": 5.5,
		"direction":     "s",
		"limit":         float64(10),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{367596940}, c.MMSI)
	assert.Equal(t, South, c.Direction)
	assert.Equal(t, 2.0, *c.MinVelocity)
	assert.Equal(t, 5.5, *c.MaxTurnRate)
	assert.Equal(t, 10, c.Limit)

	c, err = FromMap(map[string]any{"mmsi": []any{1, int64(2), float64(3)}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, c.MMSI)

	c, err = FromMap(map[string]any{"mmsi": []int{4, 5}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 5}, c.MMSI)
}

func TestFromMapRejects(t *testing.T) {
	tests := map[string]map[string]any{
		"string mmsi":      {"mmsi": "367596940"},
		"mixed list":       {"mmsi": []any{1, "2"}},
		"empty list":       {"mmsi": []any{}},
		"fractional mmsi":  {"mmsi": 1.5},
		"negative mmsi":    {"mmsi": -1},
		"too large mmsi":   {"mmsi": int64(1) << 33},
		"map mmsi":         {"mmsi": map[string]any{"a": 1}},
		"numeric date":     {"start_date": 20160727, "end_date": "2016-07-28"},
		"string velocity":  {"min_velocity": "fast"},
		"bad direction":    {"direction": "up"},
		"unknown key":      {"color": "red"},
		"fractional limit": {"limit": 2.5},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromMap(m)
			assert.ErrorIs(t, err, ErrInvalidCriteria)
		})
	}
}

func TestFromValues(t *testing.T) {
	v := url.Values{}
	v.Add("mmsi", "1,2")
	v.Add("mmsi", "3")
	v.Set("start_date", "2016-07-27")
	v.Set("end_date", "2016-07-28")
	v.Set("max_velocity", "12.5")
	v.Set("direction", "e")
	v.Set("limit", "50")
	v.Set("format", "geojson")

	c, err := FromValues(v)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, c.MMSI)
	assert.Equal(t, East, c.Direction)
	assert.Equal(t, 12.5, *c.MaxVelocity)
	assert.Nil(t, c.MinVelocity)
	assert.Equal(t, 50, c.Limit)

	_, err = FromValues(url.Values{"mmsi": {"abc"}})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
	_, err = FromValues(url.Values{"min_turn_rate": {"x"}})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
	_, err = FromValues(url.Values{"direction": {"Q"}})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestTimestampHelpers(t *testing.T) {
	assert.Equal(t, int64(1469662800), DateToTagblockTimestamp(2016, time.July, 27, 23, 40, 0))
	assert.Equal(t, "2016-07-27 23:40:00", TagblockTimestampToDate(1469662800))

	start, err := parseBoundary("2016-07-27", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1469577600), start)

	// A date-only end is the last second of that day, making the range
	// inclusive of whole calendar days.
	end, err := parseBoundary("2016-07-28", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1469750399), end)

	end, err = parseBoundary("2016-07-28 10:00:00", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1469700000), end)
}
