// Package config loads the aisdb configuration: built-in defaults, then an
// optional YAML file with ${VAR} substitution, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"aisdb/internal/api"
	"aisdb/internal/feed"
	"aisdb/internal/gfw"
	"aisdb/internal/ingest"
	"aisdb/internal/logging"
	"aisdb/internal/query"
	"aisdb/internal/storage"
)

// Config is the complete process configuration.
type Config struct {
	Storage storage.Config `yaml:"storage"`
	Ingest  IngestConfig   `yaml:"ingest"`
	Query   QueryConfig    `yaml:"query"`
	API     api.Config     `yaml:"api"`
	Feed    feed.Config    `yaml:"feed"`
	GFW     GFWConfig      `yaml:"gfw"`
	Logging logging.Config `yaml:"logging"`
}

// IngestConfig tunes file ingestion.
type IngestConfig struct {
	MinChunkSize    int  `yaml:"min_chunk_size"`
	AvgBytesPerLine int  `yaml:"avg_bytes_per_line"`
	ExactCount      bool `yaml:"exact_count"`
	Threads         int  `yaml:"threads"`    // 0 = derived from input size and cores.
	ChunkSize       int  `yaml:"chunk_size"` // 0 = derived from input size and cores.

	// ExtendedSchema also stores class B reports.
	ExtendedSchema bool `yaml:"extended_schema"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	CacheSize int `yaml:"cache_size"`

	// Defaults holds default search criteria under the same keys the HTTP
	// API accepts, e.g. mmsi, start_date, polygon_bounds.
	Defaults map[string]any `yaml:"defaults"`
}

// GFWConfig configures the Global Fishing Watch client.
type GFWConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: storage.DefaultConfig(),
		Ingest: IngestConfig{
			MinChunkSize:    ingest.DefaultMinChunkSize,
			AvgBytesPerLine: ingest.DefaultAvgBytesPerLine,
		},
		Query: QueryConfig{CacheSize: query.DefaultCacheSize},
		API:   api.Config{Addr: ":8080"},
		Feed:  feed.DefaultConfig(),
		GFW:   GFWConfig{BaseURL: gfw.DefaultBaseURL},
	}
}

// Load returns the configuration for path. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} with the value of VAR. Unset variables
// become empty.
func substituteEnvVars(content string) string {
	var sb strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start
		sb.WriteString(content[:start])
		sb.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	sb.WriteString(content)
	return sb.String()
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("AISDB_BACKEND", &c.Storage.Backend)
	str("AISDB_SQLITE_PATH", &c.Storage.SQLitePath)
	flag("AISDB_EXTENDED_SCHEMA", &c.Ingest.ExtendedSchema)

	str("CLICKHOUSE_HOST", &c.Storage.ClickHouse.Host)
	num("CLICKHOUSE_PORT", &c.Storage.ClickHouse.Port)
	str("CLICKHOUSE_DATABASE", &c.Storage.ClickHouse.Database)
	str("CLICKHOUSE_USER", &c.Storage.ClickHouse.User)
	str("CLICKHOUSE_PASSWORD", &c.Storage.ClickHouse.Password)

	str("POSTGRES_HOST", &c.Storage.Postgres.Host)
	num("POSTGRES_PORT", &c.Storage.Postgres.Port)
	str("POSTGRES_DATABASE", &c.Storage.Postgres.Database)
	str("POSTGRES_USER", &c.Storage.Postgres.User)
	str("POSTGRES_PASSWORD", &c.Storage.Postgres.Password)

	str("NATS_URL", &c.Feed.URL)
	str("AISDB_API_ADDR", &c.API.Addr)
	if v := os.Getenv("AISDB_API_KEYS"); v != "" {
		c.API.APIKeys = splitList(v)
		c.API.AuthEnabled = true
	}
	str(gfw.TokenEnv, &c.GFW.Token)
	str("AISDB_LOG_LEVEL", &c.Logging.Level)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := storage.DialectFor(c.Storage.Backend); err != nil {
		return err
	}
	if c.Storage.Backend == storage.BackendSQLite && c.Storage.SQLitePath == "" {
		return errors.New("storage.sqlite_path is required")
	}
	if c.Ingest.MinChunkSize < 1 {
		return fmt.Errorf("ingest.min_chunk_size must be positive, got %d", c.Ingest.MinChunkSize)
	}
	if c.Ingest.AvgBytesPerLine < 1 {
		return fmt.Errorf("ingest.avg_bytes_per_line must be positive, got %d", c.Ingest.AvgBytesPerLine)
	}
	if c.Ingest.Threads < 0 || c.Ingest.ChunkSize < 0 {
		return errors.New("ingest.threads and ingest.chunk_size must not be negative")
	}
	if c.Query.CacheSize < 1 {
		return fmt.Errorf("query.cache_size must be positive, got %d", c.Query.CacheSize)
	}
	if c.API.AuthEnabled && len(c.API.APIKeys) == 0 {
		return errors.New("api.auth_enabled requires api.api_keys")
	}
	if _, err := c.DefaultCriteria(); err != nil {
		return err
	}
	return nil
}

// StorageConfig returns the store settings with the schema switch applied.
func (c Config) StorageConfig() storage.Config {
	sc := c.Storage
	sc.ExtendedSchema = sc.ExtendedSchema || c.Ingest.ExtendedSchema
	return sc
}

// IngestOptions returns the scheduler options.
func (c Config) IngestOptions() ingest.Options {
	return ingest.Options{
		MinChunkSize:    c.Ingest.MinChunkSize,
		AvgBytesPerLine: c.Ingest.AvgBytesPerLine,
		ExactCount:      c.Ingest.ExactCount,
		Threads:         c.Ingest.Threads,
		ChunkSize:       c.Ingest.ChunkSize,
	}
}

// DefaultCriteria parses query.defaults.
func (c Config) DefaultCriteria() (query.Criteria, error) {
	if len(c.Query.Defaults) == 0 {
		return query.Criteria{}, nil
	}
	crit, err := query.FromMap(c.Query.Defaults)
	if err != nil {
		return query.Criteria{}, fmt.Errorf("query.defaults: %w", err)
	}
	if err := crit.Validate(); err != nil {
		return query.Criteria{}, fmt.Errorf("query.defaults: %w", err)
	}
	return crit, nil
}

// QueryOptions returns the engine options.
func (c Config) QueryOptions() (query.Options, error) {
	crit, err := c.DefaultCriteria()
	if err != nil {
		return query.Options{}, err
	}
	return query.Options{CacheSize: c.Query.CacheSize, Defaults: crit}, nil
}
