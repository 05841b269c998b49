package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"modernc.org/sqlite"
)

const pointInPolygonFunc = "point_in_polygon"

// polygonCacheSize bounds the parsed polygons kept across queries.
const polygonCacheSize = 64

// polygonCache holds parsed WKT polygons; queries pass the same text for
// every row.
var polygonCache *lru.Cache[string, orb.Polygon]

func init() {
	c, err := lru.New[string, orb.Polygon](polygonCacheSize)
	if err != nil {
		panic(err)
	}
	polygonCache = c
	sqlite.MustRegisterDeterministicScalarFunction(pointInPolygonFunc, 3, pointInPolygon)
}

// pointInPolygon implements point_in_polygon(wkt, x, y). NULL coordinates
// are never inside.
func pointInPolygon(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	text, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: polygon must be WKT text", pointInPolygonFunc)
	}
	x, okx := toFloat(args[1])
	y, oky := toFloat(args[2])
	if !okx || !oky {
		return int64(0), nil
	}

	poly, ok := polygonCache.Get(text)
	if !ok {
		p, err := wkt.UnmarshalPolygon(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pointInPolygonFunc, err)
		}
		polygonCache.Add(text, p)
		poly = p
	}

	if planar.PolygonContains(poly, orb.Point{x, y}) {
		return int64(1), nil
	}
	return int64(0), nil
}

func toFloat(v driver.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sqliteDB stores messages in an embedded SQLite file.
type sqliteDB struct {
	db *sql.DB
}

// openSQLite opens or creates the database at path.
func openSQLite(ctx context.Context, path string) (*sqliteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection per handle.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	return &sqliteDB{db: db}, nil
}

func (d *sqliteDB) Dialect() Dialect { return SQLiteDialect{} }

func (d *sqliteDB) Close() error {
	return d.db.Close()
}

func sqliteType(t ColumnType) string {
	switch t {
	case TypeInt, TypeMMSI, TypeBool:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	}
	return "TEXT"
}

func (d *sqliteDB) CreateTables(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		if _, err := d.db.ExecContext(ctx, createTableSQL(t, sqliteType, "")); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		if t.Dynamic {
			idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_mmsi_time ON %s(mmsi, tagblock_timestamp)", t.Name, t.Name)
			if _, err := d.db.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("create index on %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (d *sqliteDB) Begin(ctx context.Context) (tx, error) {
	t, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: t, stmts: make(map[string]*sql.Stmt)}, nil
}

func (d *sqliteDB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSQLRows(rows)
}

func (d *sqliteDB) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// scanSQLRows materializes database/sql rows.
func scanSQLRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, c := range columns {
			values[i] = normalize(c, values[i])
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

// sqliteTx wraps each batch in a savepoint inside one long transaction.
type sqliteTx struct {
	tx    *sql.Tx
	stmts map[string]*sql.Stmt
	seq   atomic.Int64
}

func (t *sqliteTx) stmt(ctx context.Context, table string) (*sql.Stmt, error) {
	if s, ok := t.stmts[table]; ok {
		return s, nil
	}
	tbl, ok := LookupTable(table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	s, err := t.tx.PrepareContext(ctx, insertSQL(tbl, SQLiteDialect{}))
	if err != nil {
		return nil, fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	t.stmts[table] = s
	return s, nil
}

func (t *sqliteTx) WriteBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	sp := "batch_" + strconv.FormatInt(t.seq.Add(1), 10)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	for _, r := range rows {
		s, err := t.stmt(ctx, r.Table)
		if err == nil {
			_, err = s.ExecContext(ctx, r.Values...)
		}
		if err != nil {
			if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO "+sp); rbErr != nil {
				return fmt.Errorf("insert into %s: %w (rollback: %v)", r.Table, err, rbErr)
			}
			_, _ = t.tx.ExecContext(ctx, "RELEASE "+sp)
			return fmt.Errorf("insert into %s: %w", r.Table, err)
		}
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *sqliteTx) closeStmts() {
	for _, s := range t.stmts {
		_ = s.Close()
	}
}

func (t *sqliteTx) Commit(context.Context) error {
	t.closeStmts()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback(context.Context) error {
	t.closeStmts()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
