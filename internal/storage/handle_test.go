package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"aisdb/internal/ais"
	"aisdb/internal/metrics"
)

func newTestHandle(t *testing.T, extended bool, log *zap.Logger) *Handle {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ais.db")
	cfg.ExtendedSchema = extended
	h, err := NewHandle(cfg, log, metrics.New(nil))
	require.NoError(t, err)
	require.NoError(t, h.Open(context.Background()))
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func sampleMessages() []ais.Message {
	x, y, sog := -122.4, 37.8, 10.2
	return []ais.Message{
		&ais.PositionReport{Header: ais.Header{ID: 1, MMSI: 1}, X: &x, Y: &y, SOG: &sog},
		&ais.StaticVoyage{Header: ais.Header{ID: 5, MMSI: 2}, ShipName: "EVER DIADEM"},
		&ais.ClassBPosition{Header: ais.Header{ID: 18, MMSI: 3}},
	}
}

func TestNewHandleValidation(t *testing.T) {
	_, err := NewHandle(Config{Backend: "oracle"}, nil, nil)
	assert.Error(t, err)

	_, err = NewHandle(Config{Backend: BackendSQLite}, nil, nil)
	assert.Error(t, err)
}

func TestHandleOpenIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, false, nil)

	require.NoError(t, h.Open(ctx))
	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TableStats{{Table: TablePositions}, {Table: TableStaticVoyage}}, stats)
}

func TestHandleReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, false, nil)

	w, err := h.Begin(ctx)
	require.NoError(t, err)
	n, err := w.Write(ctx, sampleMessages())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, w.Commit(ctx))

	require.NoError(t, h.Close(ctx))
	_, err = h.Query(ctx, "SELECT 1")
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = h.Begin(ctx)
	assert.True(t, errors.Is(err, ErrClosed))

	require.NoError(t, h.Open(ctx))
	res, err := h.Query(ctx, "SELECT mmsi, x, y, sog, rot FROM ais_msg_123")
	require.NoError(t, err)
	assert.Equal(t, []string{"mmsi", "x", "y", "sog", "rot"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), -122.4, 37.8, 10.2, nil}}, res.Rows)
}

func TestHandleCloseFlushesWriters(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, false, nil)

	w, err := h.Begin(ctx)
	require.NoError(t, err)
	_, err = w.Write(ctx, sampleMessages())
	require.NoError(t, err)

	require.NoError(t, h.Close(ctx))
	_, err = w.Write(ctx, sampleMessages())
	assert.True(t, errors.Is(err, ErrClosed))
	assert.NoError(t, w.Commit(ctx))

	require.NoError(t, h.Open(ctx))
	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[0].Rows)
	assert.Equal(t, int64(1), stats[1].Rows)
}

func TestWriterSkipsUnsupportedKinds(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.ErrorLevel)
	h := newTestHandle(t, false, zap.New(core))

	w, err := h.Begin(ctx)
	require.NoError(t, err)
	n, err := w.Write(ctx, []ais.Message{&otherMessage{ais.Header{ID: 4}}, &ais.ClassBPosition{Header: ais.Header{ID: 19}}, nil})
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, 3, logs.Len())
}

func TestWriterExtended(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, true, nil)

	w, err := h.Begin(ctx)
	require.NoError(t, err)
	n, err := w.Write(ctx, sampleMessages())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, w.Commit(ctx))

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, TableStats{Table: TableClassB, Rows: 1}, stats[2])
}

func TestWriterConcurrent(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t, false, nil)

	w, err := h.Begin(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Write(ctx, sampleMessages())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.NoError(t, w.Commit(ctx))

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats[0].Rows)
}
