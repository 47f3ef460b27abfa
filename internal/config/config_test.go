package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig([]byte(""), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg != Default() {
		t.Errorf("empty config = %+v, want defaults", *cfg)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	yaml := `
ballast: 1024
inline_quote_max: 0
bias_ceiling_percent: 25
verify: true
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ballast != 1024 {
		t.Errorf("ballast = %d, want 1024", cfg.Ballast)
	}
	if cfg.InlineQuoteMax != 0 {
		t.Errorf("inline_quote_max = %d, want 0", cfg.InlineQuoteMax)
	}
	if cfg.BiasCeilingPercent != 25 {
		t.Errorf("bias_ceiling_percent = %d, want 25", cfg.BiasCeilingPercent)
	}
	if !cfg.Verify {
		t.Error("expected verify to be true")
	}
	if cfg.MaxSeriesBias != DefaultMaxSeriesBias {
		t.Errorf("max_series_bias = %d, want default %d", cfg.MaxSeriesBias, DefaultMaxSeriesBias)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"quote depth too deep", "inline_quote_max: 4", "inline_quote_max"},
		{"negative quote depth", "inline_quote_max: -1", "inline_quote_max"},
		{"zero ballast", "ballast: 0", "ballast"},
		{"ceiling above 100", "bias_ceiling_percent: 101", "bias_ceiling_percent"},
		{"stack max below initial", "data_stack_initial: 64\ndata_stack_max: 8", "data_stack_max"},
		{"not yaml", "ballast: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		// A funcell.yaml above the temp dir would be picked up; ignore it.
		if strings.HasPrefix(path, root) {
			t.Fatalf("found unexpected config %s", path)
		}
	}

	want := filepath.Join(root, "a", ConfigFileName)
	if err := os.WriteFile(want, []byte("verbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, err = FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != want {
		t.Errorf("FindConfig = %q, want %q", path, want)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Verbose {
		t.Error("expected verbose from file")
	}
}
