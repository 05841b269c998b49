package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aisdb/internal/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		exactCount bool
		threads    int
		chunkSize  int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:     "ingest FILE...",
		Short:   "Decode NMEA files into the store",
		GroupID: "data",
		Long: `Decode AIS NMEA files into the store. Each file is split into chunks that
are decoded and written concurrently and committed once. Files ending in
.gz or .zst are decompressed on the fly.

Worker count and chunk size are derived from the estimated line count and
the number of CPU cores unless --threads or --chunk-size is given.`,
		Example: `  aisdb ingest data/2016-07-28.nm4
  aisdb ingest --exact-count --extended data/*.nm4.gz
  aisdb ingest --threads 2 --chunk-size 10000 data/feed.nm4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("exact-count") {
				a.cfg.Ingest.ExactCount = exactCount
			}
			if cmd.Flags().Changed("threads") {
				a.cfg.Ingest.Threads = threads
			}
			if cmd.Flags().Changed("chunk-size") {
				a.cfg.Ingest.ChunkSize = chunkSize
			}
			if a.cfg.Ingest.Threads < 0 || a.cfg.Ingest.ChunkSize < 0 {
				return errors.New("--threads and --chunk-size must not be negative")
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			sched := ingest.NewScheduler(store, a.decoder(), a.cfg.IngestOptions(), a.log.Named("ingest"), a.metrics)
			out := cmd.OutOrStdout()
			for _, path := range args {
				report, err := sched.IngestFile(ctx, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				a.log.Info("ingested file",
					zap.String("path", path),
					zap.String("run_id", report.RunID),
					zap.Int("records", report.Records),
					zap.Int("failed_batches", report.FailedBatches),
					zap.Duration("duration", report.Duration))

				if asJSON {
					b, err := json.Marshal(struct {
						Path string `json:"path"`
						*ingest.Report
					}{path, report})
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(b))
					continue
				}
				fmt.Fprintf(out, "%s: %d lines, %d records, %d/%d batches failed, %d workers x %d lines, %s\n",
					path, report.Lines, report.Records, report.FailedBatches, report.Batches,
					report.Threads, report.ChunkSize, report.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&exactCount, "exact-count", false, "Count input lines instead of estimating from file size")
	f.IntVar(&threads, "threads", 0, "Number of concurrent workers (0 = automatic)")
	f.IntVar(&chunkSize, "chunk-size", 0, "Lines per batch (0 = automatic)")
	f.BoolVar(&asJSON, "json", false, "Print one JSON report per file")
	return cmd
}
