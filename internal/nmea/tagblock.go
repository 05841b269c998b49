// Package nmea parses NMEA 0183 AIS sentences (!AIVDM / !AIVDO) together with
// their optional IEC 61162-450 tag block envelope, and reassembles messages
// that span more than one sentence.
package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned when a line cannot be split into sentence fields.
	ErrMalformed = errors.New("malformed sentence")

	// ErrChecksum is returned when a sentence or tag block checksum does not match.
	ErrChecksum = errors.New("checksum mismatch")
)

// Group is the sentence-grouping parameter of a tag block ("g:1-2-1234").
type Group struct {
	Sentence int `json:"sentence"`
	Total    int `json:"sentence_tot"`
	ID       int `json:"group_id"`
}

// Tagblock is the metadata envelope that precedes a raw sentence.
// Zero values mean the field was absent.
type Tagblock struct {
	Timestamp int64  // c: receive time, Unix seconds.
	Station   string // s: receiving station.
	LineCount int    // n: line counter.
	Group     *Group // g: multi-sentence grouping.
	Text      string // t: free text.
}

// IsZero reports whether no tag block field was present.
func (t Tagblock) IsZero() bool {
	return t.Timestamp == 0 && t.Station == "" && t.LineCount == 0 && t.Group == nil && t.Text == ""
}

// merge fills empty fields of t from o. Used when the fields of one logical
// message are spread across the tag blocks of its fragments.
func (t *Tagblock) merge(o Tagblock) {
	if t.Timestamp == 0 {
		t.Timestamp = o.Timestamp
	}
	if t.Station == "" {
		t.Station = o.Station
	}
	if t.LineCount == 0 {
		t.LineCount = o.LineCount
	}
	if t.Group == nil {
		t.Group = o.Group
	}
	if t.Text == "" {
		t.Text = o.Text
	}
}

// parseTagblock parses the content between the two backslashes,
// e.g. "g:1-2-1234,s:rORBCOMM000,c:1469662800*5A".
func parseTagblock(s string) (Tagblock, error) {
	var tb Tagblock

	body, sum, ok := strings.Cut(s, "*")
	if ok {
		if err := verifyChecksum(body, sum); err != nil {
			return tb, fmt.Errorf("tag block: %w", err)
		}
	}

	for _, field := range strings.Split(body, ",") {
		key, val, ok := strings.Cut(field, ":")
		if !ok {
			return tb, fmt.Errorf("tag block field %q: %w", field, ErrMalformed)
		}
		switch key {
		case "c":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return tb, fmt.Errorf("tag block time %q: %w", val, ErrMalformed)
			}
			// Some receivers stamp milliseconds.
			if ts > 1e11 {
				ts /= 1000
			}
			tb.Timestamp = ts
		case "s":
			tb.Station = val
		case "n":
			n, err := strconv.Atoi(val)
			if err != nil {
				return tb, fmt.Errorf("tag block line count %q: %w", val, ErrMalformed)
			}
			tb.LineCount = n
		case "g":
			g, err := parseGroup(val)
			if err != nil {
				return tb, err
			}
			tb.Group = g
		case "t":
			tb.Text = val
		}
	}

	return tb, nil
}

func parseGroup(val string) (*Group, error) {
	parts := strings.Split(val, "-")
	if len(parts) != 3 {
		return nil, fmt.Errorf("tag block group %q: %w", val, ErrMalformed)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("tag block group %q: %w", val, ErrMalformed)
		}
		nums[i] = n
	}
	return &Group{Sentence: nums[0], Total: nums[1], ID: nums[2]}, nil
}

// checksum XORs every byte of s.
func checksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}

func verifyChecksum(body, sum string) error {
	if len(sum) < 2 {
		return ErrMalformed
	}
	want, err := strconv.ParseUint(sum[:2], 16, 8)
	if err != nil {
		return ErrMalformed
	}
	if got := checksum(body); got != byte(want) {
		return fmt.Errorf("%w: got %02X want %02X", ErrChecksum, got, want)
	}
	return nil
}
