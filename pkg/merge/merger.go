package merge

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/lucaspr98/egap/pkg/logging"
	"github.com/lucaspr98/egap/pkg/metrics"
	"github.com/lucaspr98/egap/pkg/pairio"
)

// Options configures one hierarchical merge.
type Options struct {
	// Base is the input base name; runs come from <Base>.pair.lcp with
	// their byte lengths in <Base>.size.lcp.
	Base string

	// PositionBytes and LCPBytes are the on-disk field widths.
	PositionBytes int
	LCPBytes      int

	// HeapCapacity is the number of runs merged per heap pass (k >= 2).
	HeapCapacity int

	// UseMmap reads pair files through memory-mapped I/O.
	UseMmap bool

	// CompressIntermediate snappy-compresses intermediate level files,
	// one stream per merged block. The level-1 input and the terminal
	// output are never compressed.
	CompressIntermediate bool

	// CheckOrder verifies during the terminal pass that output
	// positions are exactly 0..N-1. Violations are reported in the
	// Report, never a failure.
	CheckOrder bool

	// KeepInputs leaves the level-1 input files in place after the
	// merge instead of deleting them.
	KeepInputs bool

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Report summarizes a completed merge.
type Report struct {
	MergeID        string
	Output         string
	Records        uint64
	Levels         int   // intermediate levels performed; 0 means the one-level shortcut fired
	BlocksPerLevel []int // blocks produced by each intermediate level
	Checked        bool
	Sorted         bool   // meaningful only when Checked
	OrderFaults    uint64 // positions that broke the 0..N-1 sequence
	Elapsed        time.Duration
}

// Merger drives the hierarchical external merge: it folds runs into
// intermediate merged runs until at most HeapCapacity remain, then
// performs the terminal pass that writes the sorted lcp file. Memory
// stays bounded by HeapCapacity read-ahead pairs no matter how large
// the input is.
type Merger struct {
	opts  Options
	codec *pairio.Codec
	names runNames
	log   logging.Logger
	met   *metrics.Registry
}

// New validates the configuration and builds a Merger. All validation
// happens here, before any file is opened.
func New(opts Options) (*Merger, error) {
	if opts.HeapCapacity < 2 {
		return nil, fmt.Errorf("%w: k must be at least 2, got %d", ErrBadCapacity, opts.HeapCapacity)
	}

	codec, err := pairio.NewCodec(opts.PositionBytes, opts.LCPBytes)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	met := opts.Metrics
	if met == nil {
		met = metrics.NewRegistry()
	}

	return &Merger{
		opts:  opts,
		codec: codec,
		names: runNames{base: opts.Base},
		log:   log,
		met:   met,
	}, nil
}

// levelInput describes the files feeding one merge level.
type levelInput struct {
	pairPath string
	sizePath string
	// level is the pass the files belong to, used as error context
	// when they are removed. The suffix-array stage's inputs count as
	// level 1, the pass that consumes them.
	level int
	// initial marks the level-1 input from the suffix-array stage:
	// index entries are byte lengths, runs carry no sentinels and are
	// never compressed.
	initial bool
}

// compressed reports whether runs behind this input are snappy streams.
func (m *Merger) compressed(in levelInput) bool {
	return !in.initial && m.opts.CompressIntermediate
}

// Run performs the full hierarchical merge and returns its report.
// Any file failure is fatal; no partial state survives an error.
func (m *Merger) Run() (*Report, error) {
	start := time.Now()
	rep := &Report{MergeID: uuid.NewString(), Checked: m.opts.CheckOrder}
	log := m.log.With(logging.String("merge_id", rep.MergeID))

	log.Info("merge starting",
		logging.Path(m.names.pairFile()),
		logging.Int("heap_capacity", m.opts.HeapCapacity),
		logging.Int("position_bytes", m.opts.PositionBytes),
		logging.Int("lcp_bytes", m.opts.LCPBytes),
	)

	in := levelInput{pairPath: m.names.pairFile(), sizePath: m.names.sizeFile(), level: 1, initial: true}
	level := 0
	for {
		level++
		res, err := m.runIntermediateLevel(log, level, in)
		if err != nil {
			return nil, err
		}
		if res.shortcut {
			// Every run fits in one heap pass: the terminal pass reads
			// the original input directly.
			log.Debug("one-level shortcut", logging.Int("runs", res.runs))
			break
		}

		rep.Levels++
		rep.BlocksPerLevel = append(rep.BlocksPerLevel, res.blocks)
		m.met.RecordLevel()

		if !in.initial {
			if err := removeFiles(in.level, in.pairPath, in.sizePath); err != nil {
				return nil, err
			}
		}
		in = levelInput{pairPath: m.names.levelPairFile(level), sizePath: m.names.levelSizeFile(level), level: level}

		if res.blocks <= m.opts.HeapCapacity {
			break
		}
	}

	records, sorted, faults, err := m.runTerminal(log, in)
	if err != nil {
		return nil, err
	}
	rep.Records = records
	rep.Sorted = sorted
	rep.OrderFaults = faults
	rep.Output = m.names.outputFile(m.opts.LCPBytes)

	// Intermediate files are transient: none may survive a successful
	// merge. The level-1 inputs go too once consumed, unless the caller
	// asked to keep them.
	if !in.initial {
		if err := removeFiles(in.level, in.pairPath, in.sizePath); err != nil {
			return nil, err
		}
	}
	if !m.opts.KeepInputs {
		if err := removeFiles(1, m.names.pairFile(), m.names.sizeFile()); err != nil {
			return nil, err
		}
	}

	rep.Elapsed = time.Since(start)
	m.met.ObserveMergeDuration(rep.Elapsed)

	log.Info("merge complete",
		logging.Path(rep.Output),
		logging.Records(rep.Records),
		logging.Int("levels", rep.Levels),
		logging.Latency(rep.Elapsed),
	)
	if rep.Checked && !rep.Sorted {
		log.Warn("output is not position-contiguous", logging.Uint64("order_faults", rep.OrderFaults))
	}

	return rep, nil
}

// levelResult describes one completed intermediate level.
type levelResult struct {
	blocks   int
	runs     int
	shortcut bool
}

// runIntermediateLevel partitions the input's runs into blocks of at
// most HeapCapacity, merges each block through a fresh heap and writes
// the merged runs plus the next level's run-length index. When level 1
// discovers that every run fits in a single block, it discards its
// just-opened outputs and reports the shortcut instead.
func (m *Merger) runIntermediateLevel(log logging.Logger, level int, in levelInput) (levelResult, error) {
	timer := logging.StartTimer(log, "level complete", logging.MergeLevel(level))

	src, err := openPairSource(in.pairPath, m.opts.UseMmap)
	if err != nil {
		return levelResult{}, opError("open pair file", in.pairPath, level, err)
	}
	defer src.Close()

	sizeFile, err := os.Open(in.sizePath)
	if err != nil {
		return levelResult{}, opError("open run-length index", in.sizePath, level, err)
	}
	defer sizeFile.Close()

	outPairPath := m.names.levelPairFile(level)
	outSizePath := m.names.levelSizeFile(level)

	outPair, err := os.Create(outPairPath)
	if err != nil {
		return levelResult{}, opError("create pair file", outPairPath, level, err)
	}
	outSize, err := os.Create(outSizePath)
	if err != nil {
		outPair.Close()
		return levelResult{}, opError("create run-length index", outSizePath, level, err)
	}

	committed := false
	defer func() {
		outPair.Close()
		outSize.Close()
		if !committed {
			os.Remove(outPairPath)
			os.Remove(outSizePath)
		}
	}()

	pairs := bufio.NewWriter(outPair)
	sizes := bufio.NewReader(sizeFile)

	heap, err := NewHeap(m.codec, m.opts.HeapCapacity)
	if err != nil {
		return levelResult{}, err
	}

	var offset int64
	inBlock, blocks, runs := 0, 0, 0
	for {
		length, ok, err := m.readIndexEntry(sizes, in, level)
		if err != nil {
			return levelResult{}, err
		}
		if !ok {
			break
		}

		if err := heap.Insert(openRunCursor(src, offset, length, m.codec, m.compressed(in))); err != nil {
			return levelResult{}, opError("attach run", in.pairPath, level, err)
		}
		m.met.RecordRunOpened()
		offset += length
		inBlock++
		runs++

		if inBlock == m.opts.HeapCapacity {
			if err := m.flushBlock(log, heap, pairs, outSize, level); err != nil {
				return levelResult{}, err
			}
			blocks++
			inBlock = 0
			heap, err = NewHeap(m.codec, m.opts.HeapCapacity)
			if err != nil {
				return levelResult{}, err
			}
		}
	}

	if inBlock > 0 {
		if blocks == 0 && level == 1 {
			return levelResult{runs: runs, shortcut: true}, nil
		}
		if err := m.flushBlock(log, heap, pairs, outSize, level); err != nil {
			return levelResult{}, err
		}
		blocks++
	}

	if err := pairs.Flush(); err != nil {
		return levelResult{}, opError("flush pair file", outPairPath, level, err)
	}
	if err := outPair.Close(); err != nil {
		return levelResult{}, opError("close pair file", outPairPath, level, err)
	}
	if err := outSize.Close(); err != nil {
		return levelResult{}, opError("close run-length index", outSizePath, level, err)
	}
	committed = true

	timer.End()
	log.Debug("level drained", logging.MergeLevel(level), logging.Int("runs", runs), logging.Blocks(blocks))

	return levelResult{blocks: blocks, runs: runs}, nil
}

// readIndexEntry returns the byte length of the next run. Level-1
// entries are byte lengths; intermediate entries are record counts
// (including the trailing sentinel), or compressed byte lengths when
// intermediates are snappy streams.
func (m *Merger) readIndexEntry(r *bufio.Reader, in levelInput, level int) (int64, bool, error) {
	var raw [8]byte
	_, err := io.ReadFull(r, raw[:])
	if errors.Is(err, io.EOF) {
		return 0, false, nil
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, false, opError("read run-length index", in.sizePath, level,
			fmt.Errorf("%w: truncated entry", ErrCorruptIndex))
	}
	if err != nil {
		return 0, false, opError("read run-length index", in.sizePath, level, err)
	}

	v := binary.LittleEndian.Uint64(raw[:])
	recordSize := uint64(m.codec.RecordSize())

	switch {
	case in.initial:
		if v%recordSize != 0 {
			return 0, false, opError("read run-length index", in.sizePath, level,
				fmt.Errorf("%w: run length %d is not a multiple of the %d-byte record", ErrCorruptIndex, v, recordSize))
		}
		return int64(v), true, nil
	case m.compressed(in):
		return int64(v), true, nil
	default:
		return int64(v * recordSize), true, nil
	}
}

// flushBlock drains one heap into the level output and appends the
// block's index entry.
func (m *Merger) flushBlock(log logging.Logger, h *Heap, pairs *bufio.Writer, outSize *os.File, level int) error {
	records, bytesOut, indexEntry, err := m.drainBlock(h, pairs, level)
	if err != nil {
		return opError("drain block", m.names.levelPairFile(level), level, err)
	}
	if err := binary.Write(outSize, binary.LittleEndian, indexEntry); err != nil {
		return opError("write run-length index", m.names.levelSizeFile(level), level, err)
	}

	m.met.RecordBlock(metrics.StageIntermediate, records, bytesOut)
	log.Debug("block drained", logging.MergeLevel(level), logging.Records(records))
	return nil
}

// drainBlock pops the heap until the sentinel surfaces, writing every
// real pair at this level, then emits one trailing sentinel record to
// delimit the block. The returned index entry is the emitted record
// count, or the compressed byte length when compression is on.
func (m *Merger) drainBlock(h *Heap, w io.Writer, level int) (records, bytesOut, indexEntry uint64, err error) {
	cw := &countingWriter{w: w}
	var dst io.Writer = cw

	var sw *snappy.Writer
	if m.opts.CompressIntermediate {
		sw = snappy.NewBufferedWriter(cw)
		dst = sw
	}

	for {
		k, ok, err := h.PopMin()
		if err != nil {
			return 0, 0, 0, err
		}
		if !ok {
			break
		}
		if err := m.codec.Write(dst, k, level); err != nil {
			return 0, 0, 0, err
		}
		records++
	}

	// One sentinel terminates the block in the concatenated level file.
	if err := m.codec.Write(dst, m.codec.Sentinel(), level); err != nil {
		return 0, 0, 0, err
	}
	records++

	if sw != nil {
		if err := sw.Close(); err != nil {
			return 0, 0, 0, err
		}
	}

	indexEntry = records
	if sw != nil {
		indexEntry = cw.n
	}
	return records, cw.n, indexEntry, nil
}

// runTerminal performs the level-0 pass: one heap sized to the exact
// remaining run count, draining into the externally visible lcp file.
// Only the lcp field is written; positions are the contiguous range
// 0..N-1 in output order and the final sentinel pop is discarded.
func (m *Merger) runTerminal(log logging.Logger, in levelInput) (records uint64, sorted bool, faults uint64, err error) {
	timer := logging.StartTimer(log, "terminal pass complete")
	sorted = true

	lengths, err := m.readAllIndexEntries(in)
	if err != nil {
		return 0, false, 0, err
	}

	outPath := m.names.outputFile(m.opts.LCPBytes)
	out, err := os.Create(outPath)
	if err != nil {
		return 0, false, 0, opError("create output", outPath, 0, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	if len(lengths) > 0 {
		src, err := openPairSource(in.pairPath, m.opts.UseMmap)
		if err != nil {
			return 0, false, 0, opError("open pair file", in.pairPath, 0, err)
		}
		defer src.Close()

		heap, err := NewHeap(m.codec, len(lengths))
		if err != nil {
			return 0, false, 0, err
		}
		var offset int64
		for _, length := range lengths {
			if err := heap.Insert(openRunCursor(src, offset, length, m.codec, m.compressed(in))); err != nil {
				return 0, false, 0, opError("attach run", in.pairPath, 0, err)
			}
			m.met.RecordRunOpened()
			offset += length
		}

		for {
			k, ok, err := heap.PopMin()
			if err != nil {
				return 0, false, 0, opError("drain block", in.pairPath, 0, err)
			}
			if !ok {
				break
			}
			if err := m.codec.Write(w, k, 0); err != nil {
				return 0, false, 0, opError("write output", outPath, 0, err)
			}
			if m.opts.CheckOrder && k.Pos != records {
				sorted = false
				faults++
				if faults <= 8 {
					log.Warn("position out of sequence",
						logging.Uint64("expected", records), logging.Uint64("got", k.Pos))
				}
			}
			records++
		}
	}

	if err := w.Flush(); err != nil {
		return 0, false, 0, opError("flush output", outPath, 0, err)
	}
	if err := out.Close(); err != nil {
		return 0, false, 0, opError("close output", outPath, 0, err)
	}

	m.met.RecordBlock(metrics.StageTerminal, records, records*uint64(m.codec.LCPBytes()))
	timer.End()

	return records, sorted, faults, nil
}

// readAllIndexEntries loads the run byte lengths for the terminal
// pass. Only the index is buffered, never run data, so memory stays
// proportional to the remaining run count (at most the heap capacity).
func (m *Merger) readAllIndexEntries(in levelInput) ([]int64, error) {
	f, err := os.Open(in.sizePath)
	if err != nil {
		return nil, opError("open run-length index", in.sizePath, 0, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var lengths []int64
	for {
		length, ok, err := m.readIndexEntry(r, in, 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			return lengths, nil
		}
		lengths = append(lengths, length)
	}
}

// removeFiles deletes consumed level inputs; a failure here is fatal
// because leftover intermediates violate the output contract.
func removeFiles(level int, paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return opError("remove", p, level, err)
		}
	}
	return nil
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}
