package ingest

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"

	"aisdb/internal/chunk"
)

// Sizing defaults.
const (
	DefaultMinChunkSize    = 500
	DefaultAvgBytesPerLine = 90
	DefaultCores           = 4

	// compressionRatio is the assumed expansion of compressed inputs when
	// estimating their line count from the file size.
	compressionRatio = 5
)

// Sizing is the worker count and batch size of one ingestion run.
type Sizing struct {
	Threads   int
	ChunkSize int
}

// DefaultSizing is used when the input cannot be sized.
var DefaultSizing = Sizing{Threads: 4, ChunkSize: DefaultMinChunkSize}

// PlanSizing derives the worker count and chunk size from the expected line
// count. Workers never exceed cores and there is always at least one; chunks
// never go below minChunk.
func PlanSizing(totalLines, cores, minChunk int) (Sizing, error) {
	if cores < 1 {
		return Sizing{}, fmt.Errorf("cores must be positive, got %d", cores)
	}
	if minChunk < 1 {
		return Sizing{}, fmt.Errorf("minimum chunk size must be positive, got %d", minChunk)
	}
	if totalLines < 0 {
		return Sizing{}, fmt.Errorf("line count must not be negative, got %d", totalLines)
	}

	maxChunks := min(totalLines/minChunk, cores*4)
	threads := max(1, min(cores, maxChunks))
	return Sizing{
		Threads:   threads,
		ChunkSize: max(minChunk, totalLines/threads),
	}, nil
}

// EstimateLines returns the expected line count of path: file size divided
// by avgBytesPerLine, or an exact count when exact is set.
func EstimateLines(path string, avgBytesPerLine int, exact bool) (int, error) {
	if exact {
		return chunk.CountLines(path)
	}
	if avgBytesPerLine < 1 {
		return 0, errors.New("average bytes per line must be positive")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat input: %w", err)
	}
	size := fi.Size()
	if chunk.IsCompressed(path) {
		size *= compressionRatio
	}
	return int(size / int64(avgBytesPerLine)), nil
}

// Cores returns the logical CPU count, or DefaultCores when it cannot be
// detected.
func Cores() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return DefaultCores
	}
	return n
}
