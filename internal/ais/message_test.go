package ais

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinates(t *testing.T) {
	x, y := Coordinates(-73440000, 29283000)
	require.NotNil(t, x)
	require.NotNil(t, y)
	assert.InDelta(t, -122.4, *x, 1e-9)
	assert.InDelta(t, 48.805, *y, 1e-9)

	// Not-available sentinels.
	x, y = Coordinates(181*600000, 91*600000)
	assert.Nil(t, x)
	assert.Nil(t, y)
}

func TestSpeedAndCourse(t *testing.T) {
	assert.Nil(t, Speed(1023))
	require.NotNil(t, Speed(102))
	assert.InDelta(t, 10.2, *Speed(102), 1e-9)

	assert.Nil(t, Course(3600))
	require.NotNil(t, Course(455))
	assert.InDelta(t, 45.5, *Course(455), 1e-9)
}

func TestRateOfTurn(t *testing.T) {
	tests := []struct {
		raw       int32
		want      *float64
		overRange bool
	}{
		{raw: -128},
		{raw: 0, want: ptr(0)},
		{raw: 20, want: ptr(17.856)},
		{raw: -20, want: ptr(-17.856)},
		{raw: 127, want: ptr(720.003), overRange: true},
		{raw: -127, want: ptr(-720.003), overRange: true},
	}

	for _, tt := range tests {
		rot, over := RateOfTurn(tt.raw)
		assert.Equal(t, tt.overRange, over, "raw %d", tt.raw)
		if tt.want == nil {
			assert.Nil(t, rot, "raw %d", tt.raw)
			continue
		}
		require.NotNil(t, rot, "raw %d", tt.raw)
		assert.InDelta(t, *tt.want, *rot, 1e-9, "raw %d", tt.raw)
	}
}

func TestHeader(t *testing.T) {
	var m Message = &PositionReport{Header: Header{ID: 3, MMSI: 42}}
	assert.Equal(t, 3, m.Kind())
	assert.Equal(t, uint32(42), m.Identity())
}

func ptr(v float64) *float64 { return &v }
