// Package feed ingests raw NMEA lines published on a NATS subject. Lines are
// collected into windows; each window is decoded, written and committed on
// its own, and the query cache is invalidated after every commit.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"aisdb/internal/decoder"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	"aisdb/internal/storage"
)

// Config configures the NATS subscription and the commit window.
type Config struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"` // Optional queue group.

	// A window is committed when it holds BatchSize lines or FlushInterval
	// has passed, whichever comes first.
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultConfig returns the local development settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "ais.nmea",
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// Invalidator is notified after each committed window.
type Invalidator interface {
	InvalidateCache()
}

// Stats summarizes a consumer run.
type Stats struct {
	Windows       int `json:"windows"`
	FailedWindows int `json:"failed_windows"`
	Lines         int `json:"lines"`
	Records       int `json:"records"`
}

// Consumer reads lines from NATS into the store.
type Consumer struct {
	cfg     Config
	store   *storage.Handle
	dec     *decoder.Decoder
	inv     Invalidator
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Consumer. inv may be nil.
func New(cfg Config, store *storage.Handle, dec *decoder.Decoder, inv Invalidator, log *zap.Logger, m *metrics.Metrics) *Consumer {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Consumer{
		cfg:     cfg,
		store:   store,
		dec:     dec,
		inv:     inv,
		log:     logging.OrNop(log),
		metrics: m,
	}
}

// Run connects to NATS and consumes until ctx is cancelled. The last partial
// window is committed before Run returns.
func (c *Consumer) Run(ctx context.Context) (Stats, error) {
	if err := c.store.Open(ctx); err != nil {
		return Stats{}, fmt.Errorf("open store: %w", err)
	}

	nc, err := nats.Connect(c.cfg.URL,
		nats.Name("aisdb-feed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 4096)
	var sub *nats.Subscription
	if c.cfg.Queue != "" {
		sub, err = nc.ChanQueueSubscribe(c.cfg.Subject, c.cfg.Queue, msgs)
	} else {
		sub, err = nc.ChanSubscribe(c.cfg.Subject, msgs)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("subscribe %s: %w", c.cfg.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.log.Info("feed subscribed", zap.String("url", c.cfg.URL), zap.String("subject", c.cfg.Subject))

	lines := make(chan string, 4096)
	go func() {
		defer close(lines)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgs:
				for _, l := range SplitLines(m.Data) {
					select {
					case lines <- l:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return c.Process(ctx, lines)
}

// Process consumes lines until the channel is closed, committing one window
// at a time. A failed window is logged and dropped.
func (c *Consumer) Process(ctx context.Context, lines <-chan string) (Stats, error) {
	var (
		stats  Stats
		window = make([]string, 0, c.cfg.BatchSize)
	)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(window) == 0 {
			return
		}
		// Commit the final window even when ctx is already cancelled.
		n, err := c.commit(context.WithoutCancel(ctx), window)
		stats.Windows++
		stats.Lines += len(window)
		if err != nil {
			stats.FailedWindows++
			c.log.Error("window failed", zap.Int("lines", len(window)), zap.Error(err))
			c.metrics.RecordBatch(false)
		} else {
			stats.Records += n
			c.metrics.RecordBatch(true)
		}
		window = make([]string, 0, c.cfg.BatchSize)
	}

	for {
		select {
		case l, ok := <-lines:
			if !ok {
				flush()
				return stats, nil
			}
			window = append(window, l)
			if len(window) >= c.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (c *Consumer) commit(ctx context.Context, window []string) (int, error) {
	msgs := c.dec.DecodeBatch(window)
	if len(msgs) == 0 {
		return 0, nil
	}

	w, err := c.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(ctx, msgs)
	if err != nil {
		_ = w.Rollback(ctx)
		return 0, err
	}
	if err := w.Commit(ctx); err != nil {
		return 0, err
	}

	if c.inv != nil && n > 0 {
		c.inv.InvalidateCache()
	}
	c.log.Debug("window committed", zap.Int("lines", len(window)), zap.Int("records", n))
	return n, nil
}

// SplitLines splits a message payload into non-blank lines.
func SplitLines(data []byte) []string {
	var out []string
	for _, l := range bytes.Split(data, []byte("\n")) {
		l = bytes.TrimRight(l, "\r")
		if len(bytes.TrimSpace(l)) == 0 {
			continue
		}
		out = append(out, string(l))
	}
	return out
}
