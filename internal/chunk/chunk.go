// Package chunk splits line-oriented input into fixed-size batches without
// reading the whole input into memory.
package chunk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxLine bounds a single input line. NMEA sentences are far shorter; the
// limit only guards against binary garbage.
const maxLine = 1024 * 1024

// Splitter yields consecutive batches of lines. It is forward-only; to start
// over, open the input again.
type Splitter struct {
	scanner *bufio.Scanner
	closer  io.Closer
	size    int
	done    bool
}

// New creates a Splitter reading from r in batches of size lines.
func New(r io.Reader, size int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLine)
	return &Splitter{scanner: scanner, size: size}, nil
}

// Open opens path and returns a Splitter over it. Files ending in .gz or
// .zst are decompressed on the fly.
func Open(path string, size int) (*Splitter, error) {
	rc, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	s, err := New(rc, size)
	if err != nil {
		rc.Close()
		return nil, err
	}
	s.closer = rc
	return s, nil
}

// Next returns the next batch. Every batch holds exactly the configured
// number of lines except the last, which holds the remainder. After the last
// batch Next returns io.EOF.
func (s *Splitter) Next() ([]string, error) {
	if s.done {
		return nil, io.EOF
	}

	batch := make([]string, 0, s.size)
	for len(batch) < s.size && s.scanner.Scan() {
		batch = append(batch, strings.TrimSuffix(s.scanner.Text(), "\r"))
	}
	if err := s.scanner.Err(); err != nil {
		s.done = true
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(batch) < s.size {
		s.done = true
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Close releases the underlying file, if Open created it.
func (s *Splitter) Close() error {
	s.done = true
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// IsCompressed reports whether path will be decompressed by Open.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".zst")
}

// OpenReader opens path for reading, decompressing .gz and .zst files.
func OpenReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip input: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd input: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, f}}, nil
	}
	return f, nil
}

// CountLines counts the lines in path exactly. A final line without a
// trailing newline still counts.
func CountLines(path string) (int, error) {
	rc, err := OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	buf := make([]byte, 256*1024)
	count := 0
	var last byte = '\n'
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count lines: %w", err)
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
