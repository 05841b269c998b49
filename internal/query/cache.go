package query

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"aisdb/internal/storage"
)

// DefaultCacheSize is the number of distinct queries a Cache retains.
const DefaultCacheSize = 100

// Cache holds materialized results of recently run plans, keyed by SQL text
// and arguments. Cached results are shared and must not be modified. A
// Cache is never cleared implicitly; call Invalidate after new data lands.
type Cache struct {
	entries *lru.Cache[string, *storage.Result]
}

// NewCache creates a cache holding at most size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *storage.Result](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Key returns the cache key of p.
func Key(p Plan) string {
	var b strings.Builder
	b.WriteString(p.SQL)
	for _, a := range p.Args {
		fmt.Fprintf(&b, "\x00%T:%v", a, a)
	}
	return b.String()
}

// Get returns the cached result for p.
func (c *Cache) Get(p Plan) (*storage.Result, bool) {
	return c.entries.Get(Key(p))
}

// Add stores res for p, evicting the least recently used entry when full.
func (c *Cache) Add(p Plan, res *storage.Result) {
	c.entries.Add(Key(p), res)
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.entries.Purge()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}
