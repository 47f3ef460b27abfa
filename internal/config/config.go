// Package config holds the tuning knobs of the value core and loads them from
// funcell.yaml.
//
// None of the knobs change semantics: every setting only trades memory for
// speed (or, for Verify, speed for safety).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tuning is the parsed funcell.yaml.
type Tuning struct {
	// Ballast is the allocation budget, in bytes, between collections.
	Ballast int `yaml:"ballast"`

	// InlineQuoteMax is the deepest quoting kept in the kind byte before a
	// value escalates to an out-of-line pairing. 0..3.
	InlineQuoteMax int `yaml:"inline_quote_max"`

	// MaxSeriesBias caps how many leading units head-removal may leave
	// unused before the buffer is compacted.
	MaxSeriesBias int `yaml:"max_series_bias"`

	// BiasCeilingPercent caps bias relative to the buffer capacity.
	BiasCeilingPercent int `yaml:"bias_ceiling_percent"`

	// MaxSeriesUnits is the largest capacity any series may reach.
	MaxSeriesUnits int `yaml:"max_series_units"`

	DataStackInitial int `yaml:"data_stack_initial"`
	DataStackMax     int `yaml:"data_stack_max"`
	MaxFrameDepth    int `yaml:"max_frame_depth"`

	// Verify runs the graph verifier between mark and sweep.
	Verify bool `yaml:"verify"`

	// Verbose logs every collection cycle.
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in tuning.
func Default() Tuning {
	return Tuning{
		Ballast:            DefaultBallast,
		InlineQuoteMax:     DefaultInlineQuoteMax,
		MaxSeriesBias:      DefaultMaxSeriesBias,
		BiasCeilingPercent: DefaultBiasCeilingPercent,
		MaxSeriesUnits:     DefaultMaxSeriesUnits,
		DataStackInitial:   DefaultDataStackInitial,
		DataStackMax:       DefaultDataStackMax,
		MaxFrameDepth:      DefaultMaxFrameDepth,
	}
}

// LoadConfig reads and parses a funcell.yaml file.
func LoadConfig(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses funcell.yaml content from bytes. Omitted keys keep
// their defaults. The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Tuning, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for funcell.yaml starting from dir and walking up to
// parent directories. Returns "" and a nil error when nothing is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks a Tuning built in code rather than parsed.
func (c *Tuning) Validate() error {
	return c.validate("tuning")
}

func (c *Tuning) validate(path string) error {
	if c.Ballast <= 0 {
		return fmt.Errorf("%s: ballast must be positive, got %d", path, c.Ballast)
	}
	if c.InlineQuoteMax < 0 || c.InlineQuoteMax > MaxInlineQuoteDepth {
		return fmt.Errorf("%s: inline_quote_max must be within 0..%d, got %d",
			path, MaxInlineQuoteDepth, c.InlineQuoteMax)
	}
	if c.MaxSeriesBias < 0 {
		return fmt.Errorf("%s: max_series_bias must not be negative", path)
	}
	if c.BiasCeilingPercent < 1 || c.BiasCeilingPercent > 100 {
		return fmt.Errorf("%s: bias_ceiling_percent must be within 1..100, got %d",
			path, c.BiasCeilingPercent)
	}
	if c.MaxSeriesUnits <= 1 {
		return fmt.Errorf("%s: max_series_units must exceed 1", path)
	}
	if c.DataStackInitial < 2 {
		return fmt.Errorf("%s: data_stack_initial must be at least 2", path)
	}
	if c.DataStackMax < c.DataStackInitial {
		return fmt.Errorf("%s: data_stack_max (%d) is below data_stack_initial (%d)",
			path, c.DataStackMax, c.DataStackInitial)
	}
	if c.MaxFrameDepth < 1 {
		return fmt.Errorf("%s: max_frame_depth must be positive", path)
	}
	return nil
}
