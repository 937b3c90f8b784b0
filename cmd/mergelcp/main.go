package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/lucaspr98/egap/pkg/config"
	"github.com/lucaspr98/egap/pkg/logging"
	"github.com/lucaspr98/egap/pkg/merge"
	"github.com/lucaspr98/egap/pkg/metrics"
)

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: %s [options] FILE POS_SIZE LCP_SIZE\n\n", fs.Name())
	fmt.Fprintln(out, "Multiway k-merge sort for lists of <pos, lcp> pairs.")
	fmt.Fprintln(out, "Input:  FILE.pair.lcp with the runs and FILE.size.lcp with their byte lengths.")
	fmt.Fprintln(out, "Output: FILE.<LCP_SIZE>.lcp with <lcp> values sorted by <pos>.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fs.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mergelcp", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML config file with defaults")
	k := fs.Int("k", config.DefaultHeapCapacity, "heap capacity: runs merged per pass (>= 2)")
	verbose := fs.Bool("v", false, "verbose diagnostic output")
	timings := fs.Bool("t", false, "emit elapsed-time diagnostics")
	useMmap := fs.Bool("mmap", false, "read pair files through memory-mapped I/O")
	compress := fs.Bool("compress", false, "snappy-compress intermediate level files")
	check := fs.Bool("check", false, "verify output positions are contiguous from 0")
	fs.Usage = func() { usage(fs) }

	// -h prints usage through fs.Usage and, like any malformed flag,
	// exits with failure status: no merge ran.
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	// Flags override the config file only when explicitly set.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.HeapCapacity = *k
		case "v":
			cfg.Verbose = *verbose
		case "t":
			cfg.Timings = *timings
		case "mmap":
			cfg.UseMmap = *useMmap
		case "compress":
			cfg.CompressIntermediate = *compress
		case "check":
			cfg.CheckOrder = *check
		}
	})

	positionals := fs.Args()
	if len(positionals) != 3 {
		usage(fs)
		return 1
	}
	cfg.Base = positionals[0]

	var err error
	if cfg.PositionBytes, err = strconv.Atoi(positionals[1]); err != nil {
		fmt.Fprintf(os.Stderr, "POS_SIZE must be an integer: %v\n", err)
		return 1
	}
	if cfg.LCPBytes, err = strconv.Atoi(positionals[2]); err != nil {
		fmt.Fprintf(os.Stderr, "LCP_SIZE must be an integer: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	level := logging.InfoLevel
	if cfg.Verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewJSONLogger(os.Stderr, level)
	registry := metrics.NewRegistry()

	merger, err := merge.New(merge.Options{
		Base:                 cfg.Base,
		PositionBytes:        cfg.PositionBytes,
		LCPBytes:             cfg.LCPBytes,
		HeapCapacity:         cfg.HeapCapacity,
		UseMmap:              cfg.UseMmap,
		CompressIntermediate: cfg.CompressIntermediate,
		CheckOrder:           cfg.CheckOrder,
		Logger:               logger,
		Metrics:              registry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	fmt.Printf("INPUT:\t%s.pair.lcp, %s.size.lcp\n", cfg.Base, cfg.Base)

	report, err := merger.Run()
	if err != nil {
		logger.Error("merge failed", logging.Error(err))
		return 1
	}

	fmt.Printf("%d\n", report.Records)
	fmt.Printf("OUTPUT:\t%s\n", report.Output)
	if report.Checked {
		if report.Sorted {
			fmt.Println("isSorted!!")
		} else {
			fmt.Println("isNotSorted!!")
		}
	}
	if cfg.Timings {
		fmt.Printf("elapsed\t%.6f\n", report.Elapsed.Seconds())
		fmt.Print(registry.Summary())
	}

	return 0
}
