// Package query composes filter criteria into parameterized store queries,
// caches their results and returns them as spatial result sets.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	"aisdb/internal/storage"
)

// ErrQueryFailed is returned when the store fails to run a query.
var ErrQueryFailed = errors.New("query failed")

// Options configures an Engine.
type Options struct {
	CacheSize int
	Defaults  Criteria
}

// Engine runs queries against one store. Stored default criteria apply to
// every call that does not override them. Engine is safe for concurrent use.
type Engine struct {
	store   *storage.Handle
	cache   *Cache
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	defaults Criteria
}

// NewEngine creates an Engine. The store must be opened before queries run.
func NewEngine(store *storage.Handle, opts Options, log *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if err := opts.Defaults.Validate(); err != nil {
		return nil, err
	}
	cache, err := NewCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Engine{
		store:    store,
		cache:    cache,
		log:      logging.OrNop(log),
		metrics:  m,
		defaults: opts.Defaults,
	}, nil
}

// SetDefaults replaces the stored criteria.
func (e *Engine) SetDefaults(c Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.defaults = Merge(Criteria{}, c)
	e.mu.Unlock()
	return nil
}

// Defaults returns a copy of the stored criteria.
func (e *Engine) Defaults() Criteria {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Merge(Criteria{}, e.defaults)
}

// Search queries position reports. Fields set in override take precedence
// over the stored defaults for this call only. Rows are ordered by capture
// time.
func (e *Engine) Search(ctx context.Context, override Criteria) (*ResultSet, error) {
	return e.SearchTable(ctx, storage.TablePositions, override)
}

// SearchTable is Search against any table of the schema.
func (e *Engine) SearchTable(ctx context.Context, table string, override Criteria) (*ResultSet, error) {
	c := Merge(e.Defaults(), override)
	plan, err := Build(table, c, e.store.Dialect())
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan)
}

// Vessels returns the static voyage reports of the given identities, or of
// every vessel when none is given. Stored defaults do not apply.
func (e *Engine) Vessels(ctx context.Context, mmsi ...uint32) (*ResultSet, error) {
	plan, err := Build(storage.TableStaticVoyage, Criteria{MMSI: mmsi}, e.store.Dialect())
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan)
}

// StaticParts returns the class B static data reports of the given
// identities. It needs the extended schema.
func (e *Engine) StaticParts(ctx context.Context, mmsi ...uint32) (*ResultSet, error) {
	if !e.store.Extended() {
		return nil, fmt.Errorf("%w: %s requires the extended schema", ErrInvalidCriteria, storage.TableStaticDataB)
	}
	plan, err := Build(storage.TableStaticDataB, Criteria{MMSI: mmsi}, e.store.Dialect())
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan)
}

// Run executes plan, serving it from the cache when possible.
func (e *Engine) Run(ctx context.Context, plan Plan) (*ResultSet, error) {
	start := time.Now()
	if res, ok := e.cache.Get(plan); ok {
		e.metrics.RecordQuery(true, time.Since(start))
		return newResultSet(plan, res), nil
	}

	res, err := e.store.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		e.log.Error("query failed", zap.String("sql", plan.SQL), zap.Any("args", plan.Args), zap.Error(err))
		e.metrics.RecordQueryError()
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	e.cache.Add(plan, res)
	e.metrics.SetCacheEntries(e.cache.Len())
	e.metrics.RecordQuery(false, time.Since(start))
	return newResultSet(plan, res), nil
}

// InvalidateCache drops every cached result. Call it after new data has
// been written.
func (e *Engine) InvalidateCache() {
	e.cache.Invalidate()
	e.metrics.SetCacheEntries(0)
	e.log.Debug("query cache invalidated")
}

// CacheLen returns the number of cached results.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}
