package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisdb/internal/aistest"
	"aisdb/internal/decoder"
	"aisdb/internal/export"
	"aisdb/internal/metrics"
	"aisdb/internal/query"
	"aisdb/internal/storage"
)

type fixture struct {
	store  *storage.Handle
	engine *query.Engine
	router http.Handler
}

func newFixture(t *testing.T, extended bool, cfg Config, lines ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	sc := storage.DefaultConfig()
	sc.SQLitePath = filepath.Join(t.TempDir(), "ais.db")
	sc.ExtendedSchema = extended
	store, err := storage.NewHandle(sc, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Open(ctx))
	t.Cleanup(func() { _ = store.Close(ctx) })

	if len(lines) > 0 {
		w, err := store.Begin(ctx)
		require.NoError(t, err)
		_, err = w.Write(ctx, decoder.New(decoder.Options{Extended: extended}).DecodeBatch(lines))
		require.NoError(t, err)
		require.NoError(t, w.Commit(ctx))
	}

	m := metrics.New(prometheus.NewRegistry())
	engine, err := query.NewEngine(store, query.Options{}, nil, m)
	require.NoError(t, err)

	return &fixture{
		store:  store,
		engine: engine,
		router: NewServer(engine, store, cfg, nil, m).Router(),
	}
}

func (f *fixture) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, false, Config{})
	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "sqlite", resp["backend"])
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t, false, Config{AuthEnabled: true, APIKeys: []string{"test-key-123", "another-key"}})

	tests := []struct {
		name       string
		target     string
		header     http.Header
		wantStatus int
	}{
		{"no key", "/api/v1/stats", nil, http.StatusUnauthorized},
		{"invalid key", "/api/v1/stats", http.Header{"X-Api-Key": {"wrong-key"}}, http.StatusForbidden},
		{"valid key via X-API-Key", "/api/v1/stats", http.Header{"X-Api-Key": {"test-key-123"}}, http.StatusOK},
		{"valid key via Bearer", "/api/v1/stats", http.Header{"Authorization": {"Bearer another-key"}}, http.StatusOK},
		{"valid key via query", "/api/v1/stats?api_key=another-key", nil, http.StatusOK},
		{"health is open", "/api/v1/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPositionsJSON(t *testing.T) {
	f := newFixture(t, false, Config{}, aistest.Mixed()...)

	rec := f.do(t, http.MethodGet, "/api/v1/positions?mmsi="+strconv.Itoa(aistest.MMSIType1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Result-Count"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, float64(aistest.TimeType1), rows[0]["tagblock_timestamp"])
	assert.Equal(t, float64(aistest.TimeType3), rows[1]["tagblock_timestamp"])
}

func TestPositionsFormats(t *testing.T) {
	f := newFixture(t, false, Config{}, aistest.Mixed()...)

	rec := f.do(t, http.MethodGet, "/api/v1/positions?format=geojson&direction=S", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	fc, err := export.ReadGeoJSON(rec.Body)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, float64(aistest.MMSIType2), fc.Features[0].Properties["mmsi"])

	rec = f.do(t, http.MethodGet, "/api/v1/positions?format=csv&start_date=2016-07-27&end_date=2016-07-27", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/positions?format=parquet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "positions.parquet")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")))

	rec = f.do(t, http.MethodGet, "/api/v1/positions?format=wkt&mmsi=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestPositionsBadRequest(t *testing.T) {
	f := newFixture(t, false, Config{})

	for _, target := range []string{
		"/api/v1/positions?format=pdf",
		"/api/v1/positions?format=shp",
		"/api/v1/positions?mmsi=abc",
		"/api/v1/positions?direction=NE",
		"/api/v1/positions?start_date=2016-07-27",
		"/api/v1/positions?polygon_bounds=POINT(1%202)",
	} {
		rec := f.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "error", target)
	}
}

func TestPositionsStoreFailure(t *testing.T) {
	f := newFixture(t, false, Config{})
	require.NoError(t, f.store.Close(context.Background()))

	rec := f.do(t, http.MethodGet, "/api/v1/positions", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVesselEndpoint(t *testing.T) {
	f := newFixture(t, true, Config{}, aistest.Mixed()...)

	rec := f.do(t, http.MethodGet, "/api/v1/vessels/"+strconv.Itoa(aistest.MMSIType5), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp VesselResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint32(aistest.MMSIType5), resp.MMSI)
	require.Len(t, resp.Voyage, 1)
	assert.Equal(t, "EVER DIADEM", resp.Voyage[0]["ship_name"])
	assert.Empty(t, resp.StaticParts)

	rec = f.do(t, http.MethodGet, "/api/v1/vessels/"+strconv.Itoa(aistest.MMSIType24), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = VesselResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Voyage)
	assert.Len(t, resp.StaticParts, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/vessels/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vessels/ship", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/vessels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	f := newFixture(t, false, Config{}, aistest.Type1)

	rec := f.do(t, http.MethodGet, "/api/v1/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.engine.CacheLen())

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dropped":1}`, rec.Body.String())
	assert.Equal(t, 0, f.engine.CacheLen())
}

func TestStatsAndMetrics(t *testing.T) {
	f := newFixture(t, false, Config{}, aistest.Mixed()...)

	rec := f.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Backend string               `json:"backend"`
		Tables  []storage.TableStats `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []storage.TableStats{
		{Table: storage.TablePositions, Rows: 3},
		{Table: storage.TableStaticVoyage, Rows: 1},
	}, resp.Tables)

	f.do(t, http.MethodGet, "/api/v1/positions", nil)
	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "aisdb_"))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false, Config{AuthEnabled: true})
	rec := f.do(t, http.MethodOptions, "/api/v1/positions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
