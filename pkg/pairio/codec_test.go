package pairio

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// TestNewCodec_WidthValidation tests that bad field widths are rejected
// before any I/O.
func TestNewCodec_WidthValidation(t *testing.T) {
	cases := []struct {
		name     string
		pos, lcp int
		wantErr  bool
	}{
		{"both minimal", 1, 1, false},
		{"both maximal", 8, 8, false},
		{"typical", 4, 4, false},
		{"zero position", 0, 4, true},
		{"zero lcp", 4, 0, true},
		{"negative", -1, 4, true},
		{"position too wide", 9, 4, true},
		{"lcp too wide", 4, 9, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCodec(tc.pos, tc.lcp)
			if tc.wantErr && err == nil {
				t.Fatalf("NewCodec(%d, %d) succeeded, want error", tc.pos, tc.lcp)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("NewCodec(%d, %d) failed: %v", tc.pos, tc.lcp, err)
			}
			if tc.wantErr && !errors.Is(err, ErrInvalidWidth) {
				t.Errorf("error %v is not ErrInvalidWidth", err)
			}
		})
	}
}

// TestCodec_EncodeDecodeRoundTrip tests exact round-trips at the width
// extremes.
func TestCodec_EncodeDecodeRoundTrip(t *testing.T) {
	for posBytes := 1; posBytes <= 8; posBytes++ {
		for lcpBytes := 1; lcpBytes <= 8; lcpBytes++ {
			codec, err := NewCodec(posBytes, lcpBytes)
			if err != nil {
				t.Fatalf("NewCodec(%d, %d) failed: %v", posBytes, lcpBytes, err)
			}

			maxPos := maxValue(posBytes)
			maxLCP := maxValue(lcpBytes)
			// The maximal pair is reserved for the sentinel, so probe
			// around rather than at it.
			pairs := [][2]uint64{
				{0, 0},
				{1, maxLCP},
				{maxPos, 0},
				{maxPos - 1, maxLCP},
				{maxPos / 2, maxLCP / 2},
			}

			for _, p := range pairs {
				k, err := codec.Encode(p[0], p[1])
				if err != nil {
					t.Fatalf("Encode(%d, %d) failed: %v", p[0], p[1], err)
				}
				pos, lcp := codec.Decode(k)
				if pos != p[0] || lcp != p[1] {
					t.Errorf("widths (%d,%d): round-trip (%d,%d) -> (%d,%d)",
						posBytes, lcpBytes, p[0], p[1], pos, lcp)
				}
			}
		}
	}
}

// TestCodec_EncodeRejectsOverflow tests that values wider than the
// configured fields are rejected instead of masked.
func TestCodec_EncodeRejectsOverflow(t *testing.T) {
	codec, err := NewCodec(2, 1)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	if _, err := codec.Encode(1<<16, 0); !errors.Is(err, ErrValueTooWide) {
		t.Errorf("oversized position: got %v, want ErrValueTooWide", err)
	}
	if _, err := codec.Encode(0, 256); !errors.Is(err, ErrValueTooWide) {
		t.Errorf("oversized lcp: got %v, want ErrValueTooWide", err)
	}
}

// TestCodec_WriteRejectsOverflow tests that Write holds the same width
// contract as Encode instead of masking oversized keys.
func TestCodec_WriteRejectsOverflow(t *testing.T) {
	codec, err := NewCodec(2, 1)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	var buf bytes.Buffer
	if err := codec.Write(&buf, Key{Pos: 1 << 16}, 1); !errors.Is(err, ErrValueTooWide) {
		t.Errorf("oversized position: got %v, want ErrValueTooWide", err)
	}
	if err := codec.Write(&buf, Key{LCP: 256}, 1); !errors.Is(err, ErrValueTooWide) {
		t.Errorf("oversized lcp: got %v, want ErrValueTooWide", err)
	}
	// The lcp-only terminal format rejects wide keys too.
	if err := codec.Write(&buf, Key{LCP: 256}, 0); !errors.Is(err, ErrValueTooWide) {
		t.Errorf("oversized terminal lcp: got %v, want ErrValueTooWide", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected writes emitted %d bytes", buf.Len())
	}

	// The sentinel is exactly the maximal value and stays writable.
	if err := codec.Write(&buf, codec.Sentinel(), 1); err != nil {
		t.Errorf("sentinel write failed: %v", err)
	}
}

// TestCodec_KeyOrdering tests that key comparison orders by position
// first, lcp second.
func TestCodec_KeyOrdering(t *testing.T) {
	cases := []struct {
		a, b Key
		less bool
	}{
		{Key{Pos: 0, LCP: 99}, Key{Pos: 1, LCP: 0}, true},
		{Key{Pos: 1, LCP: 0}, Key{Pos: 0, LCP: 99}, false},
		{Key{Pos: 5, LCP: 1}, Key{Pos: 5, LCP: 2}, true},
		{Key{Pos: 5, LCP: 2}, Key{Pos: 5, LCP: 2}, false},
	}

	for _, tc := range cases {
		if got := tc.a.Less(tc.b); got != tc.less {
			t.Errorf("(%v).Less(%v) = %v, want %v", tc.a, tc.b, got, tc.less)
		}
	}
}

// TestCodec_SentinelDominance tests that the sentinel compares strictly
// greater than every encodable pair for several width configurations.
func TestCodec_SentinelDominance(t *testing.T) {
	for _, widths := range [][2]int{{1, 1}, {4, 4}, {8, 8}, {2, 7}} {
		codec, err := NewCodec(widths[0], widths[1])
		if err != nil {
			t.Fatalf("NewCodec failed: %v", err)
		}
		sentinel := codec.Sentinel()

		if !codec.IsSentinel(sentinel) {
			t.Errorf("widths %v: IsSentinel(Sentinel()) = false", widths)
		}

		probes := []Key{
			{Pos: 0, LCP: 0},
			{Pos: maxValue(widths[0]), LCP: maxValue(widths[1]) - 1},
			{Pos: maxValue(widths[0]) - 1, LCP: maxValue(widths[1])},
		}
		for _, k := range probes {
			if !k.Less(sentinel) {
				t.Errorf("widths %v: %v does not order before sentinel", widths, k)
			}
			if codec.IsSentinel(k) {
				t.Errorf("widths %v: %v misidentified as sentinel", widths, k)
			}
		}
	}
}

// TestCodec_ReadWrite tests the on-disk format: both fields at
// intermediate levels, lcp only at the terminal level.
func TestCodec_ReadWrite(t *testing.T) {
	codec, err := NewCodec(3, 2)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	k := Key{Pos: 0x030201, LCP: 0x0504}

	var buf bytes.Buffer
	if err := codec.Write(&buf, k, 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("intermediate record = %x, want %x", buf.Bytes(), want)
	}

	got, err := codec.Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != k {
		t.Errorf("Read = %v, want %v", got, k)
	}

	// Terminal level keeps only the lcp field.
	buf.Reset()
	if err := codec.Write(&buf, k, 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x04, 0x05}) {
		t.Errorf("terminal record = %x, want 0405", buf.Bytes())
	}
}

// TestCodec_ReadEndOfStream tests that a clean end of stream reports
// io.EOF while a short read inside a record is corruption.
func TestCodec_ReadEndOfStream(t *testing.T) {
	codec, err := NewCodec(4, 4)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	if _, err := codec.Read(bytes.NewReader(nil)); !errors.Is(err, io.EOF) {
		t.Errorf("empty stream: got %v, want io.EOF", err)
	}

	short := make([]byte, codec.RecordSize()-1)
	if _, err := codec.Read(bytes.NewReader(short)); !errors.Is(err, ErrTruncatedRecord) {
		t.Errorf("short record: got %v, want ErrTruncatedRecord", err)
	}
}
