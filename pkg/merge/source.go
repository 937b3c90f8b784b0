package merge

import (
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// pairSource is a random-access view of one pair file. Every cursor of
// a block reads through the same source at its own offset, so one open
// handle serves the whole level.
type pairSource interface {
	io.ReaderAt
	io.Closer
}

// openPairSource opens path either as a plain file or memory-mapped.
// *os.File and *mmap.ReaderAt both satisfy pairSource.
func openPairSource(path string, useMmap bool) (pairSource, error) {
	if useMmap {
		return mmap.Open(path)
	}
	return os.Open(path)
}
