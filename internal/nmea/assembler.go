package nmea

import (
	"strconv"
	"strings"
)

// Packet is a complete message payload, joined from one or more sentences.
type Packet struct {
	Tagblock Tagblock
	Channel  string
	Payload  string
	FillBits int
	Lines    []string // Raw input lines, in fragment order.
}

type fragments struct {
	total int
	parts []*Sentence
}

// Assembler joins multi-sentence messages. It is not safe for concurrent use;
// each batch gets its own.
type Assembler struct {
	pending map[string]*fragments
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[string]*fragments)}
}

// Add feeds one sentence. It returns the completed packet when s was the last
// missing fragment, or ok=false while fragments are outstanding.
func (a *Assembler) Add(s *Sentence) (*Packet, bool) {
	if s.Total == 1 {
		return &Packet{
			Tagblock: s.Tagblock,
			Channel:  s.Channel,
			Payload:  s.Payload,
			FillBits: s.FillBits,
			Lines:    []string{s.Raw},
		}, true
	}

	key := fragmentKey(s)
	f, ok := a.pending[key]
	if !ok || s.Number == 1 || f.total != s.Total {
		f = &fragments{total: s.Total}
		a.pending[key] = f
	}
	if s.Number != len(f.parts)+1 {
		// Out of order or duplicated fragment; the message cannot be rebuilt.
		delete(a.pending, key)
		return nil, false
	}
	f.parts = append(f.parts, s)
	if len(f.parts) < f.total {
		return nil, false
	}
	delete(a.pending, key)

	p := &Packet{Channel: f.parts[0].Channel}
	var payload strings.Builder
	for _, part := range f.parts {
		p.Tagblock.merge(part.Tagblock)
		payload.WriteString(part.Payload)
		p.Lines = append(p.Lines, part.Raw)
	}
	p.Payload = payload.String()
	p.FillBits = f.parts[len(f.parts)-1].FillBits
	return p, true
}

// Pending returns the number of incomplete messages held.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

func fragmentKey(s *Sentence) string {
	if g := s.Tagblock.Group; g != nil {
		return "g" + strconv.Itoa(g.ID)
	}
	return s.Channel + "/" + s.SeqID
}
