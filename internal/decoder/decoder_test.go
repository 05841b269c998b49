package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"aisdb/internal/ais"
	"aisdb/internal/aistest"
	"aisdb/internal/metrics"
)

func kinds(msgs []ais.Message) []int {
	out := make([]int, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind()
	}
	return out
}

func TestDecodeBatchMinimal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := New(Options{Logger: zap.New(core), Metrics: metrics.New(nil)})

	msgs := d.DecodeBatch(aistest.Mixed())

	assert.Equal(t, []int{1, 2, 3, 5}, kinds(msgs))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, aistest.Corrupt, entry.ContextMap()["line"])
}

func TestDecodeBatchExtended(t *testing.T) {
	d := New(Options{Extended: true})

	msgs := d.DecodeBatch(aistest.Mixed())

	assert.Equal(t, []int{1, 2, 3, 5, 18, 19, 24, 24}, kinds(msgs))
	assert.Equal(t, []int{1, 2, 3, 5, 18, 19, 24}, d.Kinds())
}

func TestDecodeBatchNoValidLines(t *testing.T) {
	d := New(Options{})

	assert.Empty(t, d.DecodeBatch(nil))
	assert.Empty(t, d.DecodeBatch([]string{"", "   ", "garbage", aistest.Type4}))
}

func TestDecodeBatchSplitFragments(t *testing.T) {
	d := New(Options{})

	// A message cut by a batch boundary is lost on both sides.
	assert.Empty(t, d.DecodeBatch([]string{"", aistest.Type5Part1}))
	assert.Empty(t, d.DecodeBatch([]string{aistest.Type5Part2}))
}

func TestDecodeBatchKeepsOrder(t *testing.T) {
	d := New(Options{})

	msgs := d.DecodeBatch([]string{aistest.Type3, aistest.Type1, aistest.Type2})
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(aistest.TimeType3), msgs[0].Envelope().Timestamp)
	assert.Equal(t, int64(aistest.TimeType1), msgs[1].Envelope().Timestamp)
	assert.Equal(t, uint32(aistest.MMSIType2), msgs[2].Identity())
}

func TestNewUsesRegisteredParsers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	New(Options{Logger: zap.New(core)})

	entries := logs.FilterMessage("decoder ready").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4), entries[0].ContextMap()["parsers"])
}
