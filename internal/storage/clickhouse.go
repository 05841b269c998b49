package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// FlushRows bounds the rows staged per table before they are sent.
	FlushRows int `yaml:"flush_rows"`
}

const defaultFlushRows = 100000

// clickHouseDB stores messages in MergeTree tables.
type clickHouseDB struct {
	conn      driver.Conn
	flushRows int
}

// openClickHouse opens a connection to ClickHouse.
func openClickHouse(ctx context.Context, cfg ClickHouseConfig) (*clickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	flush := cfg.FlushRows
	if flush <= 0 {
		flush = defaultFlushRows
	}
	return &clickHouseDB{conn: conn, flushRows: flush}, nil
}

func (d *clickHouseDB) Dialect() Dialect { return ClickHouseDialect{} }

func (d *clickHouseDB) Close() error {
	return d.conn.Close()
}

func clickHouseType(t ColumnType) string {
	switch t {
	case TypeMMSI:
		return "UInt32"
	case TypeInt:
		return "Nullable(Int64)"
	case TypeFloat:
		return "Nullable(Float64)"
	case TypeBool:
		return "Nullable(Bool)"
	}
	return "Nullable(String)"
}

func (d *clickHouseDB) CreateTables(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		engine := "ENGINE = MergeTree()\nORDER BY (mmsi)"
		if t.Dynamic {
			engine = "ENGINE = MergeTree()\nORDER BY (mmsi, tagblock_timestamp)\nSETTINGS allow_nullable_key = 1"
		}
		if err := d.conn.Exec(ctx, createTableSQL(t, clickHouseType, engine)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (d *clickHouseDB) Begin(context.Context) (tx, error) {
	return &clickHouseTx{db: d, staged: make(map[string][][]any)}, nil
}

func (d *clickHouseDB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	res := &Result{Columns: rows.Columns()}
	for rows.Next() {
		ptrs := make([]any, len(types))
		for i, ct := range types {
			ptrs[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		values := make([]any, len(ptrs))
		for i, c := range res.Columns {
			values[i] = normalize(c, ptrs[i])
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}

func (d *clickHouseDB) Count(ctx context.Context, table string) (int64, error) {
	var n uint64
	if err := d.conn.QueryRow(ctx, "SELECT count() FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return int64(n), nil
}

// sendBatch bulk-inserts rows into table with one native batch.
func (d *clickHouseDB) sendBatch(ctx context.Context, table string, rows [][]any) error {
	tbl, ok := LookupTable(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	batch, err := d.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(tbl.ColumnNames(), ", ")))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// clickHouseTx stages rows in memory. ClickHouse has no multi-statement
// transactions: staged rows are sent on Commit, or earlier once a table
// reaches the flush threshold, and become visible when sent.
type clickHouseTx struct {
	db     *clickHouseDB
	staged map[string][][]any
}

func (t *clickHouseTx) WriteBatch(ctx context.Context, rows []Row) error {
	for _, r := range rows {
		tbl, ok := LookupTable(r.Table)
		if !ok {
			return fmt.Errorf("unknown table %q", r.Table)
		}
		if len(r.Values) != len(tbl.Columns) {
			return fmt.Errorf("row for %s has %d values, want %d", r.Table, len(r.Values), len(tbl.Columns))
		}
	}
	for _, r := range rows {
		t.staged[r.Table] = append(t.staged[r.Table], r.Values)
	}

	for table, staged := range t.staged {
		if len(staged) >= t.db.flushRows {
			if err := t.db.sendBatch(ctx, table, staged); err != nil {
				return fmt.Errorf("flush %s: %w", table, err)
			}
			delete(t.staged, table)
		}
	}
	return nil
}

func (t *clickHouseTx) Commit(ctx context.Context) error {
	var errs []error
	for table, staged := range t.staged {
		if err := t.db.sendBatch(ctx, table, staged); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
		}
	}
	t.staged = make(map[string][][]any)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *clickHouseTx) Rollback(context.Context) error {
	t.staged = make(map[string][][]any)
	return nil
}
