package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestConfig_ValidateAcceptsDefaults tests that defaults plus a base
// name form a valid config.
func TestConfig_ValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Base = "corpus"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

// TestConfig_ValidateRejections tests the pre-I/O configuration errors.
func TestConfig_ValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base", func(c *Config) { c.Base = "" }, "Base"},
		{"heap capacity below 2", func(c *Config) { c.HeapCapacity = 1 }, "HeapCapacity"},
		{"zero position width", func(c *Config) { c.PositionBytes = 0 }, "PositionBytes"},
		{"zero lcp width", func(c *Config) { c.LCPBytes = 0 }, "LCPBytes"},
		{"position width above 8", func(c *Config) { c.PositionBytes = 9 }, "PositionBytes"},
		{"lcp width above 8", func(c *Config) { c.LCPBytes = 12 }, "LCPBytes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Base = "corpus"
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

// TestConfig_MaximalWidths tests that the widest legal record passes.
func TestConfig_MaximalWidths(t *testing.T) {
	cfg := Default()
	cfg.Base = "corpus"
	cfg.PositionBytes = 8
	cfg.LCPBytes = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed for 8+8 byte record: %v", err)
	}
}

// TestConfig_Load tests YAML loading over defaults.
func TestConfig_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merge.yaml")
	content := `
base: corpus
heap_capacity: 64
position_bytes: 5
lcp_bytes: 3
compress_intermediate: true
check_order: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Base != "corpus" || cfg.HeapCapacity != 64 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.PositionBytes != 5 || cfg.LCPBytes != 3 {
		t.Errorf("unexpected widths: %+v", cfg)
	}
	if !cfg.CompressIntermediate || !cfg.CheckOrder {
		t.Errorf("boolean options not applied: %+v", cfg)
	}
	if cfg.UseMmap || cfg.Verbose {
		t.Errorf("unset options should stay at defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

// TestConfig_LoadMissingFile tests that a missing config file is an
// error rather than silent defaults.
func TestConfig_LoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load succeeded for missing file")
	}
}
