package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisdb/internal/storage"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		c         Criteria
		wantWhere string
		wantArgs  []any
	}{
		{"no filters", Criteria{}, "", nil},
		{"single mmsi", Criteria{MMSI: []uint32{7}}, " WHERE mmsi = ?", []any{uint32(7)}},
		{"mmsi list", Criteria{MMSI: []uint32{7, 8}}, " WHERE mmsi IN (?, ?)", []any{uint32(7), uint32(8)}},
		{
			"dates",
			Criteria{StartDate: "2016-07-27", EndDate: "2016-07-28"},
			" WHERE tagblock_timestamp BETWEEN ? AND ?",
			[]any{int64(1469577600), int64(1469750399)},
		},
		{
			"kinematics",
			Criteria{MinVelocity: fptr(1), MaxVelocity: fptr(2), MinTurnRate: fptr(-3), MaxTurnRate: fptr(3)},
			" WHERE sog >= ? AND sog <= ? AND rot >= ? AND rot <= ?",
			[]any{1.0, 2.0, -3.0, 3.0},
		},
		{"north", Criteria{Direction: North}, " WHERE (cog >= 315 OR cog < 45)", nil},
		{"west", Criteria{Direction: West}, " WHERE (cog >= 225 AND cog < 315)", nil},
		{
			"polygon",
			Criteria{Polygon: "POLYGON((0 0,1 0,1 1,0 0))", MMSI: []uint32{7}},
			" WHERE mmsi = ? AND point_in_polygon(?, x, y) = 1",
			[]any{uint32(7), "POLYGON((0 0,1 0,1 1,0 0))"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(storage.TablePositions, tt.c, storage.SQLiteDialect{})
			require.NoError(t, err)
			assert.Equal(t, "SELECT "+joinColumns(p.Columns)+" FROM ais_msg_123"+tt.wantWhere+" ORDER BY tagblock_timestamp, mmsi", p.SQL)
			assert.Equal(t, tt.wantArgs, p.Args)
			assert.Len(t, p.Columns, 23)
		})
	}
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func TestBuildPostgresPlaceholders(t *testing.T) {
	p, err := Build(storage.TablePositions, Criteria{
		MMSI:        []uint32{1, 2},
		StartDate:   "2016-07-27",
		EndDate:     "2016-07-27",
		MinVelocity: fptr(3),
		Limit:       5,
	}, storage.PostgresDialect{})
	require.NoError(t, err)
	assert.Contains(t, p.SQL, "WHERE mmsi IN ($1, $2) AND tagblock_timestamp BETWEEN $3 AND $4 AND sog >= $5 ORDER BY")
	assert.Contains(t, p.SQL, " LIMIT 5")
	assert.Len(t, p.Args, 5)
}

func TestBuildStaticTable(t *testing.T) {
	p, err := Build(storage.TableStaticVoyage, Criteria{MMSI: []uint32{9}}, storage.SQLiteDialect{})
	require.NoError(t, err)
	assert.Contains(t, p.SQL, "FROM ais_msg_5 WHERE mmsi = ? ORDER BY mmsi")
	assert.Len(t, p.Columns, 17)

	for _, c := range []Criteria{
		{StartDate: "2016-07-27", EndDate: "2016-07-28"},
		{Polygon: "POLYGON((0 0,1 0,1 1,0 0))"},
		{MaxTurnRate: fptr(1)},
		{Direction: East},
	} {
		_, err := Build(storage.TableStaticVoyage, c, storage.SQLiteDialect{})
		assert.ErrorIs(t, err, ErrInvalidCriteria)
	}
}

func TestBuildRejects(t *testing.T) {
	_, err := Build("ships", Criteria{}, storage.SQLiteDialect{})
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	_, err = Build(storage.TablePositions, Criteria{Direction: "NE"}, storage.SQLiteDialect{})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestCacheKey(t *testing.T) {
	a := Plan{SQL: "SELECT 1 WHERE mmsi = ?", Args: []any{uint32(1)}}
	b := Plan{SQL: "SELECT 1 WHERE mmsi = ?", Args: []any{uint32(2)}}
	c := Plan{SQL: "SELECT 1 WHERE mmsi = ?", Args: []any{"1"}}
	assert.NotEqual(t, Key(a), Key(b))
	assert.NotEqual(t, Key(a), Key(c))
	assert.Equal(t, Key(a), Key(Plan{SQL: a.SQL, Args: []any{uint32(1)}}))
}

func TestCacheEviction(t *testing.T) {
	cache, err := NewCache(2)
	require.NoError(t, err)

	plans := []Plan{{SQL: "a"}, {SQL: "b"}, {SQL: "c"}}
	for _, p := range plans {
		cache.Add(p, &storage.Result{Columns: []string{p.SQL}})
	}
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get(plans[0])
	assert.False(t, ok)
	res, ok := cache.Get(plans[2])
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, res.Columns)

	cache.Invalidate()
	assert.Equal(t, 0, cache.Len())
}
