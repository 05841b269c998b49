package registry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
	_ "aisdb/internal/parsers"
	"aisdb/internal/registry"
)

const (
	type1Payload = "15NTES001Vo?d`0E`Ah1iiLt28CB"
	type4Payload = "403OviP000000000000000000000"
)

type stubParser struct {
	name     string
	types    []int
	minBits  int
	priority int
	err      error
	calls    *[]string
}

func (p stubParser) Name() string    { return p.name }
func (p stubParser) Types() []int    { return p.types }
func (p stubParser) MinBits(int) int { return p.minBits }
func (p stubParser) Priority() int   { return p.priority }
func (p stubParser) Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error) {
	*p.calls = append(*p.calls, p.name)
	if p.err != nil {
		return nil, p.err
	}
	return &ais.Header{ID: id, RepeatIndicator: int(f.Uint(2)), MMSI: f.Uint(30), Tagblock: tb}, nil
}

func TestDecodePriorityAndFallback(t *testing.T) {
	var calls []string
	r := registry.New()
	r.Register(stubParser{name: "second", types: []int{1, 2, 3}, priority: 20, calls: &calls})
	r.Register(stubParser{name: "first", types: []int{1}, priority: 10, err: errors.New("boom"), calls: &calls})
	r.Sort()

	msg, err := r.Decode(&nmea.Packet{Payload: type1Payload})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 1, msg.Kind())
	assert.Equal(t, uint32(367596940), msg.Identity())
}

func TestDecodeErrors(t *testing.T) {
	var calls []string
	r := registry.New()
	r.Register(stubParser{name: "needy", types: []int{1}, minBits: 1000, calls: &calls})
	r.Sort()

	_, err := r.Decode(&nmea.Packet{Payload: type1Payload})
	assert.ErrorIs(t, err, ais.ErrShortPayload)
	assert.Empty(t, calls, "short payloads are rejected before parsing")

	_, err = r.Decode(&nmea.Packet{Payload: type4Payload})
	assert.ErrorIs(t, err, registry.ErrNoParser)

	r.Register(stubParser{name: "failing", types: []int{4}, err: errors.New("bad layout"), calls: &calls})
	r.Sort()
	_, err = r.Decode(&nmea.Packet{Payload: type4Payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: bad layout")
}

func TestRegisteredTypes(t *testing.T) {
	var calls []string
	r := registry.New()
	r.Register(stubParser{name: "a", types: []int{3, 1}, calls: &calls})
	r.Register(stubParser{name: "b", types: []int{2, 1}, calls: &calls})

	assert.Equal(t, []int{1, 2, 3}, r.RegisteredTypes())
	assert.Equal(t, 2, r.ParserCount())
}

func TestDefaultRegistry(t *testing.T) {
	types := registry.Default().RegisteredTypes()
	for _, id := range []int{1, 2, 3, 5, 18, 19, 24} {
		assert.Contains(t, types, id)
	}
	assert.NotContains(t, types, 4)
}
