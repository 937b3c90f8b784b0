package merge

import (
	"errors"
	"io"

	"github.com/golang/snappy"
	"github.com/lucaspr98/egap/pkg/pairio"
)

// Cursor is a lazy, forward-only reader over one run of packed pairs.
// A run ends either at the boundary of its byte range or at a trailing
// sentinel record (intermediate levels delimit blocks that way); both
// report as exhaustion, never as data.
type Cursor struct {
	r     io.Reader
	codec *pairio.Codec
	done  bool
}

// NewCursor wraps a reader already positioned at the run's first
// record and bounded to the run's byte range.
func NewCursor(r io.Reader, codec *pairio.Codec) *Cursor {
	return &Cursor{r: r, codec: codec}
}

// openRunCursor builds a cursor over the run at [offset, offset+length)
// of src. Compressed runs hold one snappy stream per run.
func openRunCursor(src io.ReaderAt, offset, length int64, codec *pairio.Codec, compressed bool) *Cursor {
	section := io.NewSectionReader(src, offset, length)
	if compressed {
		return NewCursor(snappy.NewReader(section), codec)
	}
	return NewCursor(section, codec)
}

// Next returns the run's next pair. ok is false once the run is
// exhausted; after that every call keeps returning false. A short read
// inside a record surfaces as an error, never as silent truncation.
func (cu *Cursor) Next() (pairio.Key, bool, error) {
	if cu.done {
		return pairio.Key{}, false, nil
	}

	k, err := cu.codec.Read(cu.r)
	if errors.Is(err, io.EOF) {
		cu.done = true
		return pairio.Key{}, false, nil
	}
	if err != nil {
		cu.done = true
		return pairio.Key{}, false, err
	}

	// A decoded sentinel is the block delimiter written by the previous
	// level, not data.
	if cu.codec.IsSentinel(k) {
		cu.done = true
		return pairio.Key{}, false, nil
	}

	return k, true, nil
}
