package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// URL returns the connection string for cfg.
func (cfg PostgresConfig) URL() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// postgresDB stores messages in PostgreSQL over a single pooled connection.
type postgresDB struct {
	pool *pgxpool.Pool
}

// openPostgres connects to PostgreSQL.
func openPostgres(ctx context.Context, cfg PostgresConfig) (*postgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	// One connection per handle.
	poolCfg.MaxConns = 1
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &postgresDB{pool: pool}, nil
}

func (d *postgresDB) Dialect() Dialect { return PostgresDialect{} }

func (d *postgresDB) Close() error {
	d.pool.Close()
	return nil
}

func postgresType(t ColumnType) string {
	switch t {
	case TypeInt, TypeMMSI:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeBool:
		return "BOOLEAN"
	}
	return "TEXT"
}

func (d *postgresDB) CreateTables(ctx context.Context, tables []Table) error {
	for _, t := range tables {
		if _, err := d.pool.Exec(ctx, createTableSQL(t, postgresType, "")); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		if t.Dynamic {
			idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_mmsi_time ON %s(mmsi, tagblock_timestamp)", t.Name, t.Name)
			if _, err := d.pool.Exec(ctx, idx); err != nil {
				return fmt.Errorf("create index on %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func (d *postgresDB) Begin(ctx context.Context) (tx, error) {
	t, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &postgresTx{tx: t}, nil
}

func (d *postgresDB) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(fields))}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, c := range res.Columns {
			values[i] = normalize(c, values[i])
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

func (d *postgresDB) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// postgresTx runs each batch in a nested transaction (a savepoint) and
// loads rows with COPY.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) WriteBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	byTable := make(map[string][][]any)
	var order []string
	for _, r := range rows {
		if _, ok := byTable[r.Table]; !ok {
			order = append(order, r.Table)
		}
		byTable[r.Table] = append(byTable[r.Table], r.Values)
	}

	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	for _, name := range order {
		tbl, ok := LookupTable(name)
		if !ok {
			err = fmt.Errorf("unknown table %q", name)
		} else {
			_, err = sp.CopyFrom(ctx, pgx.Identifier{name}, tbl.ColumnNames(), pgx.CopyFromRows(byTable[name]))
		}
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return errors.Join(fmt.Errorf("copy into %s: %w", name, err), rbErr)
			}
			return fmt.Errorf("copy into %s: %w", name, err)
		}
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
