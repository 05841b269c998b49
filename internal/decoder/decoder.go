// Package decoder turns batches of raw NMEA lines into typed AIS messages,
// keeping only the message kinds the store has tables for.
package decoder

import (
	"sort"

	"go.uber.org/zap"

	"aisdb/internal/ais"
	"aisdb/internal/logging"
	"aisdb/internal/metrics"
	"aisdb/internal/nmea"
	_ "aisdb/internal/parsers" // register all parsers via init()
	"aisdb/internal/registry"
)

// Kind sets for the two schema shapes.
var (
	MinimalKinds  = []int{ais.KindPositionA1, ais.KindPositionA2, ais.KindPositionA3, ais.KindStaticVoyage}
	ExtendedKinds = []int{ais.KindPositionB, ais.KindPositionBExt, ais.KindStaticDataPart}
)

// Options configures a Decoder.
type Options struct {
	// Extended also retains class B kinds (18, 19, 24).
	Extended bool

	// Registry defaults to registry.Default().
	Registry *registry.Registry

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Decoder decodes line batches. It is safe for concurrent use; every call to
// DecodeBatch assembles fragments independently.
type Decoder struct {
	reg     *registry.Registry
	kinds   map[int]bool
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Decoder.
func New(opts Options) *Decoder {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	reg.Sort()

	kinds := make(map[int]bool)
	for _, k := range MinimalKinds {
		kinds[k] = true
	}
	if opts.Extended {
		for _, k := range ExtendedKinds {
			kinds[k] = true
		}
	}

	d := &Decoder{
		reg:     reg,
		kinds:   kinds,
		log:     logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
	d.log.Debug("decoder ready",
		zap.Int("parsers", reg.ParserCount()),
		zap.Ints("types", reg.RegisteredTypes()),
		zap.Ints("kinds", d.Kinds()))
	return d
}

// Kinds returns the retained message kinds in ascending order.
func (d *Decoder) Kinds() []int {
	out := make([]int, 0, len(d.kinds))
	for k := range d.kinds {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// DecodeBatch decodes lines in order. Lines that fail to parse or decode are
// logged and skipped; kinds outside the retained set are dropped silently.
// A message whose fragments straddle the end of the batch is lost.
func (d *Decoder) DecodeBatch(lines []string) []ais.Message {
	asm := nmea.NewAssembler()
	var out []ais.Message

	for _, line := range lines {
		if isBlank(line) {
			continue
		}

		s, err := nmea.Parse(line)
		if err != nil {
			d.log.Warn("skipping undecodable line", zap.String("line", line), zap.Error(err))
			d.metrics.RecordLine(metrics.LineFailed)
			continue
		}

		pkt, ok := asm.Add(s)
		if !ok {
			continue
		}

		id, err := ais.MessageID(pkt.Payload)
		if err != nil {
			d.log.Warn("skipping undecodable line", zap.Strings("lines", pkt.Lines), zap.Error(err))
			d.metrics.RecordLine(metrics.LineFailed)
			continue
		}
		if !d.kinds[id] {
			d.metrics.RecordLine(metrics.LineDropped)
			continue
		}

		msg, err := d.reg.Decode(pkt)
		if err != nil {
			d.log.Warn("skipping undecodable message", zap.Strings("lines", pkt.Lines), zap.Int("kind", id), zap.Error(err))
			d.metrics.RecordLine(metrics.LineFailed)
			continue
		}
		d.metrics.RecordLine(metrics.LineDecoded)
		out = append(out, msg)
	}

	if n := asm.Pending(); n > 0 {
		d.log.Debug("dropping incomplete multi-sentence messages at batch end", zap.Int("count", n))
	}
	return out
}

func isBlank(line string) bool {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
