package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aisdb/internal/api"
	"aisdb/internal/feed"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		auth     bool
		apiKeys  string
		withFeed bool
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP query API",
		GroupID: "service",
		Long: `Serve the query API and Prometheus metrics over HTTP.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/positions?mmsi=...&start_date=...&end_date=...&format=geojson
  GET  /api/v1/vessels
  GET  /api/v1/vessels/{mmsi}
  GET  /api/v1/stats
  POST /api/v1/cache/invalidate
  GET  /metrics

With --auth, requests must carry an API key in the X-API-Key header, an
Authorization: Bearer header or the api_key query parameter.

With --feed, the NATS consumer runs in the same process and the query
cache is invalidated after every committed window.`,
		Example: `  aisdb serve --addr :8080
  aisdb serve --auth --api-keys key1,key2
  aisdb serve --feed --backend clickhouse`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				a.cfg.API.Addr = addr
			}
			if flags.Changed("auth") {
				a.cfg.API.AuthEnabled = auth
			}
			if flags.Changed("api-keys") {
				a.cfg.API.APIKeys = nil
				for _, k := range strings.Split(apiKeys, ",") {
					if k = strings.TrimSpace(k); k != "" {
						a.cfg.API.APIKeys = append(a.cfg.API.APIKeys, k)
					}
				}
			}
			if a.cfg.API.AuthEnabled && len(a.cfg.API.APIKeys) == 0 {
				return errors.New("--auth requires --api-keys")
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			engine, err := a.engine(store)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return api.NewServer(engine, store, a.cfg.API, a.log.Named("api"), a.metrics).Run(ctx)
			})
			if withFeed {
				g.Go(func() error {
					stats, err := feed.New(a.cfg.Feed, store, a.decoder(), engine, a.log.Named("feed"), a.metrics).Run(ctx)
					a.log.Info("feed stopped", zap.Int("windows", stats.Windows), zap.Int("records", stats.Records))
					return err
				})
			}
			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "Listen address")
	f.BoolVar(&auth, "auth", false, "Enable API key authentication")
	f.StringVar(&apiKeys, "api-keys", "", "Comma-separated list of valid API keys")
	f.BoolVar(&withFeed, "feed", false, "Also consume the NATS feed")
	return cmd
}

func newFeedCmd(a *app) *cobra.Command {
	var (
		url           string
		subject       string
		queue         string
		batchSize     int
		flushInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:     "feed",
		Short:   "Ingest NMEA lines published on NATS",
		GroupID: "service",
		Long: `Subscribe to a NATS subject carrying raw NMEA lines, one or more per
message, and write them to the store. Lines are committed in windows of
--batch-size lines or every --flush-interval, whichever comes first.`,
		Example: `  aisdb feed --url nats://localhost:4222 --subject ais.nmea
  aisdb feed --queue aisdb --batch-size 2000 --flush-interval 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("url") {
				a.cfg.Feed.URL = url
			}
			if flags.Changed("subject") {
				a.cfg.Feed.Subject = subject
			}
			if flags.Changed("queue") {
				a.cfg.Feed.Queue = queue
			}
			if flags.Changed("batch-size") {
				a.cfg.Feed.BatchSize = batchSize
			}
			if flags.Changed("flush-interval") {
				a.cfg.Feed.FlushInterval = flushInterval
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			stats, err := feed.New(a.cfg.Feed, store, a.decoder(), nil, a.log.Named("feed"), a.metrics).Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d lines, %d records, %d/%d windows failed\n",
				stats.Lines, stats.Records, stats.FailedWindows, stats.Windows)
			return err
		},
	}

	def := feed.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&url, "url", def.URL, "NATS server URL")
	f.StringVar(&subject, "subject", def.Subject, "Subject carrying NMEA lines")
	f.StringVar(&queue, "queue", "", "Queue group for load-balanced consumers")
	f.IntVar(&batchSize, "batch-size", def.BatchSize, "Lines per committed window")
	f.DurationVar(&flushInterval, "flush-interval", def.FlushInterval, "Maximum time between commits")
	return cmd
}
