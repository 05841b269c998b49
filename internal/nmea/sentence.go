package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentence is one parsed !AIVDM/!AIVDO line.
type Sentence struct {
	Tagblock Tagblock
	Talker   string // e.g. "AIVDM".
	Total    int    // Number of fragments in the message.
	Number   int    // 1-based fragment number.
	SeqID    string // Sequential message id, empty for single-fragment messages.
	Channel  string // Radio channel, "A" or "B".
	Payload  string // 6-bit armoured payload.
	FillBits int
	Raw      string
}

// Parse parses one input line. Leading tag blocks and trailing receiver
// metadata (",r<station>,<unix>" as written by some coastal networks) are
// accepted.
func Parse(line string) (*Sentence, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty line: %w", ErrMalformed)
	}

	s := &Sentence{Raw: line}

	if strings.HasPrefix(line, `\`) {
		end := strings.Index(line[1:], `\`)
		if end < 0 {
			return nil, fmt.Errorf("unterminated tag block: %w", ErrMalformed)
		}
		tb, err := parseTagblock(line[1 : end+1])
		if err != nil {
			return nil, err
		}
		s.Tagblock = tb
		line = line[end+2:]
	}

	if !strings.HasPrefix(line, "!") && !strings.HasPrefix(line, "$") {
		return nil, fmt.Errorf("missing sentence start: %w", ErrMalformed)
	}

	star := strings.IndexByte(line, '*')
	if star < 0 {
		return nil, fmt.Errorf("missing checksum: %w", ErrMalformed)
	}
	body := line[1:star]
	rest := line[star+1:]
	sum, trailer, _ := strings.Cut(rest, ",")
	if err := verifyChecksum(body, sum); err != nil {
		return nil, err
	}
	if trailer != "" {
		parseTrailer(trailer, &s.Tagblock)
	}

	fields := strings.Split(body, ",")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d: %w", len(fields), ErrMalformed)
	}
	s.Talker = fields[0]
	if !strings.HasSuffix(s.Talker, "VDM") && !strings.HasSuffix(s.Talker, "VDO") {
		return nil, fmt.Errorf("unsupported sentence %q: %w", s.Talker, ErrMalformed)
	}

	var err error
	if s.Total, err = strconv.Atoi(fields[1]); err != nil || s.Total < 1 {
		return nil, fmt.Errorf("fragment count %q: %w", fields[1], ErrMalformed)
	}
	if s.Number, err = strconv.Atoi(fields[2]); err != nil || s.Number < 1 || s.Number > s.Total {
		return nil, fmt.Errorf("fragment number %q: %w", fields[2], ErrMalformed)
	}
	s.SeqID = fields[3]
	s.Channel = fields[4]
	s.Payload = fields[5]
	if fields[6] != "" {
		if s.FillBits, err = strconv.Atoi(fields[6]); err != nil || s.FillBits < 0 || s.FillBits > 5 {
			return nil, fmt.Errorf("fill bits %q: %w", fields[6], ErrMalformed)
		}
	}

	return s, nil
}

// parseTrailer reads ",r<station>,<unix>" style metadata after the checksum.
// Values only fill fields the tag block left empty.
func parseTrailer(trailer string, tb *Tagblock) {
	for _, f := range strings.Split(trailer, ",") {
		switch {
		case strings.HasPrefix(f, "r") || strings.HasPrefix(f, "s"):
			if tb.Station == "" {
				tb.Station = f[1:]
			}
		default:
			if ts, err := strconv.ParseInt(f, 10, 64); err == nil && tb.Timestamp == 0 {
				tb.Timestamp = ts
			}
		}
	}
}
