// Package ais holds the typed AIS message records and the low-level payload
// reader used by the message parsers.
package ais

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShortPayload is returned when a read runs past the end of the payload.
	ErrShortPayload = errors.New("payload too short")

	// ErrBadArmor is returned for characters outside the 6-bit armour alphabet.
	ErrBadArmor = errors.New("invalid payload character")
)

// BitReader reads big-endian bit fields from an unarmoured AIS payload.
type BitReader struct {
	data   []byte
	offset int // Current bit offset.
	nbits  int // Total number of bits available.
}

// NewBitReader unarmours payload and returns a reader over its bits,
// excluding the trailing fill bits.
func NewBitReader(payload string, fillBits int) (*BitReader, error) {
	nbits := len(payload)*6 - fillBits
	if nbits < 0 {
		return nil, fmt.Errorf("fill bits %d exceed payload: %w", fillBits, ErrShortPayload)
	}

	data := make([]byte, (len(payload)*6+7)/8)
	bit := 0
	for i := 0; i < len(payload); i++ {
		v, err := sixBit(payload[i])
		if err != nil {
			return nil, err
		}
		for j := 5; j >= 0; j-- {
			if v&(1<<j) != 0 {
				data[bit/8] |= 0x80 >> (bit % 8)
			}
			bit++
		}
	}

	return &BitReader{data: data, nbits: nbits}, nil
}

// sixBit maps one armour character to its 6-bit value.
func sixBit(c byte) (byte, error) {
	if c < 48 || c > 119 || (c > 87 && c < 96) {
		return 0, fmt.Errorf("%w: %q", ErrBadArmor, c)
	}
	v := c - 48
	if v > 40 {
		v -= 8
	}
	return v, nil
}

// Len returns the total number of payload bits.
func (br *BitReader) Len() int {
	return br.nbits
}

// Remaining returns the number of bits remaining.
func (br *BitReader) Remaining() int {
	return br.nbits - br.offset
}

// Skip advances past n bits.
func (br *BitReader) Skip(n int) error {
	if br.offset+n > br.nbits {
		return ErrShortPayload
	}
	br.offset += n
	return nil
}

// ReadUint reads up to 32 bits as an unsigned value.
func (br *BitReader) ReadUint(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, errors.New("invalid bit count (must be 0-32)")
	}
	if br.offset+n > br.nbits {
		return 0, ErrShortPayload
	}

	var v uint32
	for i := 0; i < n; i++ {
		pos := br.offset + i
		v <<= 1
		if br.data[pos/8]&(0x80>>(pos%8)) != 0 {
			v |= 1
		}
	}
	br.offset += n
	return v, nil
}

// ReadInt reads an n-bit two's complement signed value.
func (br *BitReader) ReadInt(n int) (int32, error) {
	u, err := br.ReadUint(n)
	if err != nil {
		return 0, err
	}
	if n > 0 && u&(1<<(n-1)) != 0 {
		return int32(u) - int32(1<<n), nil
	}
	return int32(u), nil
}

// ReadBool reads a single bit.
func (br *BitReader) ReadBool() (bool, error) {
	v, err := br.ReadUint(1)
	return v == 1, err
}

// ReadText reads n 6-bit characters. '@' padding and trailing spaces are
// removed.
func (br *BitReader) ReadText(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v, err := br.ReadUint(6)
		if err != nil {
			return "", err
		}
		if v < 32 {
			v += 64
		}
		sb.WriteByte(byte(v))
	}
	s := sb.String()
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " "), nil
}

// Fields collects sequential reads and keeps the first error, so decoders
// can read a whole layout and check once.
type Fields struct {
	br  *BitReader
	err error
}

// NewFields wraps br.
func NewFields(br *BitReader) *Fields {
	return &Fields{br: br}
}

// Err returns the first read error.
func (f *Fields) Err() error { return f.err }

// Uint reads n unsigned bits.
func (f *Fields) Uint(n int) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.br.ReadUint(n)
	f.err = err
	return v
}

// Int reads n signed bits.
func (f *Fields) Int(n int) int32 {
	if f.err != nil {
		return 0
	}
	v, err := f.br.ReadInt(n)
	f.err = err
	return v
}

// Bool reads one bit.
func (f *Fields) Bool() bool {
	return f.Uint(1) == 1
}

// Text reads n 6-bit characters.
func (f *Fields) Text(n int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.br.ReadText(n)
	f.err = err
	return v
}

// Skip advances n bits.
func (f *Fields) Skip(n int) {
	if f.err != nil {
		return
	}
	f.err = f.br.Skip(n)
}

// Remaining returns the unread bit count.
func (f *Fields) Remaining() int {
	return f.br.Remaining()
}

// MessageID returns the message type encoded in the first payload character,
// without unarmouring the rest.
func MessageID(payload string) (int, error) {
	if payload == "" {
		return 0, ErrShortPayload
	}
	v, err := sixBit(payload[0])
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
