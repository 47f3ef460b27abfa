package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

func TestParseConfig_Archive(t *testing.T) {
	ar, err := txtar.ParseFile(filepath.Join("testdata", "tunings.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range ar.Files {
		t.Run(f.Name, func(t *testing.T) {
			cfg, err := ParseConfig(f.Data, f.Name)
			if strings.HasPrefix(f.Name, "ok/") {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if err := cfg.Validate(); err != nil {
					t.Errorf("parsed tuning does not validate: %v", err)
				}
				return
			}
			first, _, _ := strings.Cut(string(f.Data), "\n")
			want := strings.TrimPrefix(first, "# error: ")
			if err == nil {
				t.Fatalf("expected error containing %q", want)
			}
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q does not mention %q", err, want)
			}
			if !strings.Contains(err.Error(), f.Name) {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestFindConfig_Archive(t *testing.T) {
	ar, err := txtar.ParseFile(filepath.Join("testdata", "find.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	for _, f := range ar.Files {
		path := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	found, err := FindConfig(filepath.Join(root, "project", "src", "pkg"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "project", "funcell.yaml")
	if found != want {
		t.Fatalf("FindConfig = %q, want %q", found, want)
	}
	cfg, err := LoadConfig(found)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ballast != 2048 {
		t.Errorf("ballast = %d, want 2048", cfg.Ballast)
	}
}
