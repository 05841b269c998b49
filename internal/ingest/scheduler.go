// Package ingest drives concurrent decode and write of NMEA input into the
// store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aisdb/internal/chunk"
	"aisdb/internal/decoder"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	"aisdb/internal/storage"
)

// BatchSource yields line batches until io.EOF.
type BatchSource interface {
	Next() ([]string, error)
}

// Options tunes a Scheduler. Zero values select the defaults.
type Options struct {
	MinChunkSize    int
	AvgBytesPerLine int

	// ExactCount counts input lines instead of estimating from file size.
	ExactCount bool

	// Threads and ChunkSize, when set, bypass the sizing heuristic.
	Threads   int
	ChunkSize int
}

// Report summarizes one ingestion run.
type Report struct {
	RunID         string        `json:"run_id"`
	Threads       int           `json:"threads"`
	ChunkSize     int           `json:"chunk_size"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Lines         int           `json:"lines"`
	Records       int           `json:"records"`
	Duration      time.Duration `json:"duration"`
}

// Scheduler ingests input into one store.
type Scheduler struct {
	store   *storage.Handle
	dec     *decoder.Decoder
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	cores   func() int
}

// NewScheduler creates a Scheduler writing to store.
func NewScheduler(store *storage.Handle, dec *decoder.Decoder, opts Options, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.AvgBytesPerLine <= 0 {
		opts.AvgBytesPerLine = DefaultAvgBytesPerLine
	}
	return &Scheduler{
		store:   store,
		dec:     dec,
		opts:    opts,
		log:     logging.OrNop(log),
		metrics: m,
		cores:   Cores,
	}
}

// Plan sizes an ingestion of path. Failures fall back to DefaultSizing.
func (s *Scheduler) Plan(path string) Sizing {
	sizing, err := s.plan(path)
	if err != nil {
		s.log.Warn("sizing failed, using defaults",
			zap.String("path", path),
			zap.Int("threads", DefaultSizing.Threads),
			zap.Int("chunk_size", DefaultSizing.ChunkSize),
			zap.Error(err))
		sizing = DefaultSizing
	}
	if s.opts.Threads > 0 {
		sizing.Threads = s.opts.Threads
	}
	if s.opts.ChunkSize > 0 {
		sizing.ChunkSize = s.opts.ChunkSize
	}
	return sizing
}

func (s *Scheduler) plan(path string) (Sizing, error) {
	lines, err := EstimateLines(path, s.opts.AvgBytesPerLine, s.opts.ExactCount)
	if err != nil {
		return Sizing{}, err
	}
	return PlanSizing(lines, s.cores(), s.opts.MinChunkSize)
}

// IngestFile sizes the run, opens the store and ingests path. Only failing to
// open the store or the input is fatal; failed batches are logged and
// counted in the report.
func (s *Scheduler) IngestFile(ctx context.Context, path string) (*Report, error) {
	sizing := s.Plan(path)

	if err := s.store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	src, err := chunk.Open(path, sizing.ChunkSize)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return s.Run(ctx, src, sizing)
}

// Run dispatches every batch of src to at most sizing.Threads concurrent
// workers, waits for all of them and commits once. A batch that fails to
// write is rolled back on its own without affecting the others.
func (s *Scheduler) Run(ctx context.Context, src BatchSource, sizing Sizing) (*Report, error) {
	if sizing.Threads < 1 {
		sizing.Threads = 1
	}

	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Threads:   sizing.Threads,
		ChunkSize: sizing.ChunkSize,
	}
	log := s.log.With(zap.String("run_id", report.RunID))
	log.Info("ingestion started", zap.Int("threads", sizing.Threads), zap.Int("chunk_size", sizing.ChunkSize))

	w, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ingestion: %w", err)
	}

	var (
		g       errgroup.Group
		records atomic.Int64
		failed  atomic.Int64
		readErr error
	)
	g.SetLimit(sizing.Threads)

	for index := 0; ; index++ {
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		report.Batches++
		report.Lines += len(batch)

		g.Go(func() error {
			msgs := s.dec.DecodeBatch(batch)
			n, err := w.Write(ctx, msgs)
			if err != nil {
				log.Error("batch failed", zap.Int("batch", index), zap.Int("lines", len(batch)), zap.Error(err))
				failed.Add(1)
				s.metrics.RecordBatch(false)
				return nil
			}
			records.Add(int64(n))
			s.metrics.RecordBatch(true)
			return nil
		})
	}
	_ = g.Wait()

	report.Records = int(records.Load())
	report.FailedBatches = int(failed.Load())

	if err := w.Commit(ctx); err != nil {
		return report, fmt.Errorf("commit ingestion: %w", err)
	}

	report.Duration = time.Since(start)
	s.metrics.RecordIngest(sizing.Threads, report.Duration)
	log.Info("ingestion finished",
		zap.Int("batches", report.Batches),
		zap.Int("failed_batches", report.FailedBatches),
		zap.Int("records", report.Records),
		zap.Duration("duration", report.Duration))

	if readErr != nil {
		return report, fmt.Errorf("read input: %w", readErr)
	}
	return report, nil
}
