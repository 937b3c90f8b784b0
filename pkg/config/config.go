package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate = validator.New()

// MaxRecordBytes is the largest combined width of the position and lcp
// fields in one on-disk record.
const MaxRecordBytes = 16

// DefaultHeapCapacity is used when no -k flag or config value is given.
const DefaultHeapCapacity = 256

// Config holds every knob for one merge invocation. Values can come
// from a YAML file, command-line flags, or both (flags win).
type Config struct {
	// Base is the input base name: runs are read from <base>.pair.lcp
	// and <base>.size.lcp.
	Base string `yaml:"base" validate:"required"`

	// PositionBytes is the on-disk width of the position field.
	PositionBytes int `yaml:"position_bytes" validate:"required,min=1,max=8"`

	// LCPBytes is the on-disk width of the lcp field.
	LCPBytes int `yaml:"lcp_bytes" validate:"required,min=1,max=8"`

	// HeapCapacity is the number of runs merged per heap pass.
	HeapCapacity int `yaml:"heap_capacity" validate:"required,min=2"`

	// UseMmap reads the pair files through memory-mapped I/O.
	UseMmap bool `yaml:"mmap"`

	// CompressIntermediate snappy-compresses intermediate level files,
	// one compressed stream per merged block.
	CompressIntermediate bool `yaml:"compress_intermediate"`

	// CheckOrder verifies during the terminal pass that output
	// positions are exactly 0..N-1. Violations are diagnostics, not
	// failures.
	CheckOrder bool `yaml:"check_order"`

	// Verbose enables per-level and per-block debug logging.
	Verbose bool `yaml:"verbose"`

	// Timings enables elapsed-time diagnostics.
	Timings bool `yaml:"timings"`
}

// Default returns a config with the same defaults as the CLI.
func Default() Config {
	return Config{
		PositionBytes: 4,
		LCPBytes:      4,
		HeapCapacity:  DefaultHeapCapacity,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config before any file is opened.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.PositionBytes+c.LCPBytes > MaxRecordBytes {
		return fmt.Errorf("combined field width %d exceeds %d bytes",
			c.PositionBytes+c.LCPBytes, MaxRecordBytes)
	}
	return nil
}

// formatValidationError turns validator tag failures into readable messages.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
