package pairio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxRecordSize is the largest on-disk record: 8 bytes of position plus
// 8 bytes of lcp.
const MaxRecordSize = 16

// Common codec errors
var (
	ErrInvalidWidth    = errors.New("invalid field width")
	ErrTruncatedRecord = errors.New("truncated pair record")
	ErrValueTooWide    = errors.New("value does not fit configured width")
)

// Key is the packed comparison value for one (position, lcp) record.
// Ordering is position first, lcp second; Less compares at most two
// machine words and only one when positions differ.
type Key struct {
	Pos uint64
	LCP uint64
}

// Less reports whether k orders strictly before o.
func (k Key) Less(o Key) bool {
	if k.Pos != o.Pos {
		return k.Pos < o.Pos
	}
	return k.LCP < o.LCP
}

// Codec reads and writes fixed-width little-endian (position, lcp)
// records. Field widths are set at construction and never change.
type Codec struct {
	posBytes   int
	lcpBytes   int
	recordSize int
	sentinel   Key
}

// NewCodec builds a codec for the given field widths. Widths are
// validated before any I/O happens: each field is 1-8 bytes and the
// combined record is at most MaxRecordSize bytes.
func NewCodec(posBytes, lcpBytes int) (*Codec, error) {
	if posBytes < 1 || lcpBytes < 1 {
		return nil, fmt.Errorf("%w: both fields need at least 1 byte (pos=%d, lcp=%d)",
			ErrInvalidWidth, posBytes, lcpBytes)
	}
	if posBytes > 8 || lcpBytes > 8 {
		return nil, fmt.Errorf("%w: fields are at most 8 bytes (pos=%d, lcp=%d)",
			ErrInvalidWidth, posBytes, lcpBytes)
	}
	if posBytes+lcpBytes > MaxRecordSize {
		return nil, fmt.Errorf("%w: combined width %d exceeds %d bytes",
			ErrInvalidWidth, posBytes+lcpBytes, MaxRecordSize)
	}

	return &Codec{
		posBytes:   posBytes,
		lcpBytes:   lcpBytes,
		recordSize: posBytes + lcpBytes,
		sentinel:   Key{Pos: maxValue(posBytes), LCP: maxValue(lcpBytes)},
	}, nil
}

// maxValue returns the largest unsigned integer representable in n bytes.
func maxValue(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*n) - 1
}

// PositionBytes returns the configured position field width.
func (c *Codec) PositionBytes() int { return c.posBytes }

// LCPBytes returns the configured lcp field width.
func (c *Codec) LCPBytes() int { return c.lcpBytes }

// RecordSize returns the on-disk size of a full (position, lcp) record.
func (c *Codec) RecordSize() int { return c.recordSize }

// Encode packs a (position, lcp) pair into a comparison key. Values
// that do not fit the configured widths are rejected rather than
// silently masked.
func (c *Codec) Encode(pos, lcp uint64) (Key, error) {
	if pos > maxValue(c.posBytes) {
		return Key{}, fmt.Errorf("%w: position %d in %d bytes", ErrValueTooWide, pos, c.posBytes)
	}
	if lcp > maxValue(c.lcpBytes) {
		return Key{}, fmt.Errorf("%w: lcp %d in %d bytes", ErrValueTooWide, lcp, c.lcpBytes)
	}
	return Key{Pos: pos, LCP: lcp}, nil
}

// Decode unpacks a key back into its (position, lcp) pair. Exact for
// every key produced by Encode or Read.
func (c *Codec) Decode(k Key) (pos, lcp uint64) {
	return k.Pos, k.LCP
}

// Sentinel returns the reserved maximal key for the configured widths.
// It compares strictly greater than every encodable pair.
func (c *Codec) Sentinel() Key { return c.sentinel }

// IsSentinel reports whether k is the reserved maximal key.
func (c *Codec) IsSentinel(k Key) bool { return k == c.sentinel }

// Read decodes the next full record from r. A clean end of stream at a
// record boundary returns io.EOF; a short read inside a record returns
// ErrTruncatedRecord.
func (c *Codec) Read(r io.Reader) (Key, error) {
	var buf [MaxRecordSize]byte
	n, err := io.ReadFull(r, buf[:c.recordSize])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Key{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Key{}, fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedRecord, n, c.recordSize)
		}
		return Key{}, err
	}

	return Key{
		Pos: leUint(buf[:c.posBytes]),
		LCP: leUint(buf[c.posBytes:c.recordSize]),
	}, nil
}

// Write encodes k to w. Keys wider than the configured fields are
// rejected with ErrValueTooWide, the same contract as Encode, never
// silently masked. Level 0 is the terminal pass and writes only the
// lcp field; positions there are the contiguous range 0..N-1 in output
// order, so storing them would be redundant. Every other level writes
// position then lcp so later passes can keep merging.
func (c *Codec) Write(w io.Writer, k Key, level int) error {
	if k.Pos > maxValue(c.posBytes) || k.LCP > maxValue(c.lcpBytes) {
		return fmt.Errorf("%w: key (%d, %d) in %d+%d bytes",
			ErrValueTooWide, k.Pos, k.LCP, c.posBytes, c.lcpBytes)
	}

	var buf [MaxRecordSize]byte
	if level == 0 {
		putLEUint(buf[:c.lcpBytes], k.LCP)
		_, err := w.Write(buf[:c.lcpBytes])
		return err
	}

	putLEUint(buf[:c.posBytes], k.Pos)
	putLEUint(buf[c.posBytes:c.recordSize], k.LCP)
	_, err := w.Write(buf[:c.recordSize])
	return err
}

// leUint decodes an unsigned little-endian integer of 1-8 bytes.
func leUint(b []byte) uint64 {
	var tmp [8]byte
	copy(tmp[:], b)
	return binary.LittleEndian.Uint64(tmp[:])
}

// putLEUint encodes v little-endian into the full width of b.
func putLEUint(b []byte, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	copy(b, tmp[:len(b)])
}
