// Package registry provides the AIS message parser registry. Parsers register
// themselves per message type from init(); decoding dispatches on the 6-bit
// message id at the start of every payload.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"aisdb/internal/ais"
	"aisdb/internal/nmea"
)

// ErrNoParser is returned when no parser is registered for a message type.
var ErrNoParser = errors.New("no parser for message type")

// Parser is implemented by each message-type parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Types returns which AIS message ids this parser handles.
	Types() []int

	// MinBits is the shortest payload the parser accepts. Shorter payloads
	// are rejected before any field is read.
	MinBits(id int) int

	// Priority determines order when multiple parsers handle the same type.
	// Lower number = tried first.
	Priority() int

	// Parse decodes the fields that follow the 6-bit message id.
	Parse(id int, f *ais.Fields, tb nmea.Tagblock) (ais.Message, error)
}

// Registry holds all registered parsers keyed by message id.
type Registry struct {
	mu     sync.RWMutex
	byType map[int][]Parser
	sorted bool
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byType: make(map[int][]Parser),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range p.Types() {
		r.byType[id] = append(r.byType[id], p)
	}
	r.sorted = false
}

// Sort sorts all parser slices by priority. Call before dispatching.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sorted {
		return
	}
	for id := range r.byType {
		parsers := r.byType[id]
		sort.SliceStable(parsers, func(i, j int) bool {
			return parsers[i].Priority() < parsers[j].Priority()
		})
	}
	r.sorted = true
}

// Decode unarmours the packet payload and hands it to the parsers registered
// for its message id. The first parser that succeeds wins; if all fail, the
// last error is returned.
func (r *Registry) Decode(p *nmea.Packet) (ais.Message, error) {
	br, err := ais.NewBitReader(p.Payload, p.FillBits)
	if err != nil {
		return nil, err
	}
	id, err := br.ReadUint(6)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	parsers := r.byType[int(id)]
	r.mu.RUnlock()

	if len(parsers) == 0 {
		return nil, fmt.Errorf("%w %d", ErrNoParser, id)
	}

	var lastErr error
	for _, parser := range parsers {
		if br.Len() < parser.MinBits(int(id)) {
			lastErr = fmt.Errorf("%s: %d bits, need %d: %w", parser.Name(), br.Len(), parser.MinBits(int(id)), ais.ErrShortPayload)
			continue
		}
		// Each attempt reads from just after the id.
		attempt, _ := ais.NewBitReader(p.Payload, p.FillBits)
		_ = attempt.Skip(6)
		f := ais.NewFields(attempt)
		msg, err := parser.Parse(int(id), f, p.Tagblock)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", parser.Name(), err)
			continue
		}
		return msg, nil
	}
	return nil, lastErr
}

// RegisteredTypes returns all message ids that have parsers registered.
func (r *Registry) RegisteredTypes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.byType))
	for id := range r.byType {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ParserCount returns the total number of unique registered parsers.
// Parsers registered for multiple types are only counted once.
func (r *Registry) ParserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, parsers := range r.byType {
		for _, p := range parsers {
			seen[p.Name()] = true
		}
	}
	return len(seen)
}
