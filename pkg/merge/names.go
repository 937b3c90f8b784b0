package merge

import "fmt"

// runNames builds the file names shared with the suffix-array stage
// that produces the initial runs. The base name is the only state, so
// names can be passed by value instead of living in shared buffers.
type runNames struct {
	base string
}

// pairFile is the level-1 input pair file.
func (n runNames) pairFile() string { return n.base + ".pair.lcp" }

// sizeFile is the level-1 run-length index.
func (n runNames) sizeFile() string { return n.base + ".size.lcp" }

// levelPairFile is the pair file emitted by an intermediate level.
func (n runNames) levelPairFile(level int) string {
	return fmt.Sprintf("%s.pair.%d.lcp", n.base, level)
}

// levelSizeFile is the run-length index emitted by an intermediate level.
func (n runNames) levelSizeFile(level int) string {
	return fmt.Sprintf("%s.size.%d.lcp", n.base, level)
}

// outputFile is the terminal sorted lcp file. The lcp width is part of
// the name so downstream stages can recover it.
func (n runNames) outputFile(lcpBytes int) string {
	return fmt.Sprintf("%s.%d.lcp", n.base, lcpBytes)
}
