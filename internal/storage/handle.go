package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"aisdb/internal/ais"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
)

// ErrClosed is returned when a Handle is used while not open.
var ErrClosed = errors.New("store handle is closed")

// Config selects and configures the backend.
type Config struct {
	Backend    string           `yaml:"backend"`
	SQLitePath string           `yaml:"sqlite_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`

	// ExtendedSchema adds the class B tables.
	ExtendedSchema bool `yaml:"extended_schema"`
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendSQLite,
		SQLitePath: "ais_data.db",
		ClickHouse: ClickHouseConfig{
			Host:      "localhost",
			Port:      9000,
			Database:  "ais",
			User:      "default",
			FlushRows: defaultFlushRows,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "ais",
			User:     "ais",
			Password: "ais",
		},
	}
}

// Handle owns the connection to one store. Open connects lazily and is
// idempotent; Close flushes outstanding writers and releases the
// connection. A closed Handle may be opened again.
type Handle struct {
	cfg     Config
	dialect Dialect
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	db      backend
	writers map[*Writer]struct{}
}

// NewHandle validates cfg and returns an unopened Handle.
func NewHandle(cfg Config, log *zap.Logger, m *metrics.Metrics) (*Handle, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	d, err := DialectFor(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == BackendSQLite && cfg.SQLitePath == "" {
		return nil, errors.New("sqlite path is required")
	}
	return &Handle{
		cfg:     cfg,
		dialect: d,
		log:     logging.OrNop(log),
		metrics: m,
		writers: make(map[*Writer]struct{}),
	}, nil
}

// Open connects and creates the schema if it does not exist yet. If the
// handle is already open, Open does nothing.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return nil
	}

	var (
		db  backend
		err error
	)
	switch h.cfg.Backend {
	case BackendSQLite:
		db, err = openSQLite(ctx, h.cfg.SQLitePath)
	case BackendClickHouse:
		db, err = openClickHouse(ctx, h.cfg.ClickHouse)
	case BackendPostgres:
		db, err = openPostgres(ctx, h.cfg.Postgres)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", h.cfg.Backend, err)
	}

	if err := db.CreateTables(ctx, h.Tables()); err != nil {
		_ = db.Close()
		return fmt.Errorf("%s schema: %w", h.cfg.Backend, err)
	}

	h.db = db
	h.log.Debug("store opened", zap.String("backend", h.cfg.Backend), zap.Bool("extended", h.cfg.ExtendedSchema))
	return nil
}

// Close commits every writer still open and releases the connection.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}

	var errs []error
	for w := range h.writers {
		if err := w.finish(ctx, true); err != nil {
			errs = append(errs, err)
		}
	}
	h.writers = make(map[*Writer]struct{})

	if err := h.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", h.cfg.Backend, err))
	}
	h.db = nil
	return errors.Join(errs...)
}

// Backend returns the configured backend name.
func (h *Handle) Backend() string { return h.cfg.Backend }

// Dialect returns the SQL dialect of the backend.
func (h *Handle) Dialect() Dialect { return h.dialect }

// Extended reports whether the class B tables are part of the schema.
func (h *Handle) Extended() bool { return h.cfg.ExtendedSchema }

// Tables returns the tables of the configured schema.
func (h *Handle) Tables() []Table { return Tables(h.cfg.ExtendedSchema) }

func (h *Handle) conn() (backend, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil, ErrClosed
	}
	return h.db, nil
}

// Query runs a read query and materializes the result.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	db, err := h.conn()
	if err != nil {
		return nil, err
	}
	return db.Query(ctx, query, args...)
}

// TableStats is the row count of one table.
type TableStats struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Stats returns the row count of every table in the schema.
func (h *Handle) Stats(ctx context.Context) ([]TableStats, error) {
	db, err := h.conn()
	if err != nil {
		return nil, err
	}
	var stats []TableStats
	for _, t := range h.Tables() {
		n, err := db.Count(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		stats = append(stats, TableStats{Table: t.Name, Rows: n})
	}
	return stats, nil
}

// Begin starts a write transaction.
func (h *Handle) Begin(ctx context.Context) (*Writer, error) {
	db, err := h.conn()
	if err != nil {
		return nil, err
	}
	t, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	w := &Writer{h: h, tx: t}
	h.mu.Lock()
	h.writers[w] = struct{}{}
	h.mu.Unlock()
	return w, nil
}

// Writer is an open write transaction. Write is safe for concurrent use;
// calls are serialized onto the single connection.
type Writer struct {
	h *Handle

	mu   sync.Mutex
	tx   tx
	done bool
}

// Write stores the rows of one batch of messages atomically. Messages of an
// unsupported kind are logged and skipped. It returns the number of rows
// written.
func (w *Writer) Write(ctx context.Context, msgs []ais.Message) (int, error) {
	rows := make([]Row, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			w.h.log.Error("skipping record", zap.Error(fmt.Errorf("%w: nil message", ErrUnsupportedKind)))
			continue
		}
		table, err := TableFor(m.Kind())
		if err != nil {
			w.h.log.Error("skipping record", zap.Error(err))
			continue
		}
		if !w.h.cfg.ExtendedSchema && (table == TableClassB || table == TableStaticDataB) {
			w.h.log.Error("skipping record", zap.Error(fmt.Errorf("%w: %d without extended schema", ErrUnsupportedKind, m.Kind())))
			continue
		}
		r, err := RowFor(m)
		if err != nil {
			w.h.log.Error("skipping record", zap.Error(err))
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, ErrClosed
	}
	if err := w.tx.WriteBatch(ctx, rows); err != nil {
		return 0, err
	}

	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Table]++
	}
	for table, n := range counts {
		w.h.metrics.RecordRows(table, n)
	}
	return len(rows), nil
}

// Commit makes every written batch durable.
func (w *Writer) Commit(ctx context.Context) error {
	err := w.finish(ctx, true)
	w.forget()
	return err
}

// Rollback discards every written batch.
func (w *Writer) Rollback(ctx context.Context) error {
	err := w.finish(ctx, false)
	w.forget()
	return err
}

func (w *Writer) finish(ctx context.Context, commit bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	if commit {
		return w.tx.Commit(ctx)
	}
	return w.tx.Rollback(ctx)
}

func (w *Writer) forget() {
	w.h.mu.Lock()
	delete(w.h.writers, w)
	w.h.mu.Unlock()
}
