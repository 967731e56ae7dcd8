package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAndNormalize(t *testing.T) {
	cfg := Default()
	if cfg.Port == 0 || cfg.DataDir == "" || len(cfg.Extensions) != 6 {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.MaxConcurrentExtractions != 0 || cfg.ExtractTimeout != 0 {
		t.Fatalf("defaults must be unbounded and without timeout: %+v", cfg)
	}

	got := NormalizeExtensions([]string{"ZIP", ".rar", "zip", "  .7Z", ""})

	want := []string{"zip", "rar", "7z"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if got := NormalizeExtensions(nil); len(got) != len(DefaultExtensions) {
		t.Fatalf("expected fallback to defaults, got %v", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "not_exists.yml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte("port: 9090\ndata_dir: testdata\nextensions: [ZIP, .gz]\nmax_concurrent_extractions: 4\nextract_timeout: 30s\nauto_advance: true\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DataDir != "testdata" || cfg.MaxConcurrentExtractions != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ExtractTimeout != 30*time.Second || !cfg.AutoAdvance {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[0] != "zip" || cfg.Extensions[1] != "gz" {
		t.Fatalf("extensions not normalized: %v", cfg.Extensions)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ZIPDIVE_PORT", "7070")
	t.Setenv("ZIPDIVE_EXTENSIONS", "zip,tar")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Port)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[1] != "tar" {
		t.Fatalf("expected env extensions, got %v", cfg.Extensions)
	}
}

func TestLoadRejectsInvalidConcurrency(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte("max_concurrent_extractions: -1\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid concurrency")
	}
}
