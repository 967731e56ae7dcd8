package archive

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
)

var defaultExtensions = []string{"zip", "rar", "7z", "tar", "gz", "bz2"}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestIsArchive(t *testing.T) {
	s := NewScanner([]string{".zip", "GZ", "rar", "7z", "tar", "bz2"})
	cases := map[string]bool{
		"a.zip":         true,
		"A.ZIP":         true,
		"b.tar.gz":      true,
		"c.7z":          true,
		"d.txt":         false,
		"zip":           false,
		"e.zip.txt":     false,
		"f.bz2":         true,
		"dir/g.rar":     true,
		"archive.tgz":   false,
		"trailing.zip.": false,
	}
	for in, want := range cases {
		if got := s.IsArchive(in); got != want {
			t.Fatalf("IsArchive(%q)=%v want %v", in, got, want)
		}
	}
}

func TestScanFindsArchivesRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.zip"))
	writeFile(t, filepath.Join(root, "a.txt"))
	writeFile(t, filepath.Join(root, "sub", "b.rar"))
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.tar.gz"))
	writeFile(t, filepath.Join(root, "sub", "readme.md"))
	if err := os.MkdirAll(filepath.Join(root, "folder.zip"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := NewScanner(defaultExtensions).Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sort.Strings(got)
	want := []string{
		filepath.Join(root, "a.zip"),
		filepath.Join(root, "sub", "b.rar"),
		filepath.Join(root, "sub", "deeper", "c.tar.gz"),
	}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScanSingleArchiveExcludesText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.zip"))
	writeFile(t, filepath.Join(root, "a.txt"))

	got, err := NewScanner(defaultExtensions).Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "a.zip") {
		t.Fatalf("expected only a.zip, got %v", got)
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	got, err := NewScanner(defaultExtensions).Scan(t.TempDir())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no archives, got %v", got)
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewScanner(defaultExtensions).Scan(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestScanSkipsBrokenSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.zip"))
	if err := os.Symlink(filepath.Join(root, "gone.zip"), filepath.Join(root, "broken.zip")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real.zip"), filepath.Join(root, "link.zip")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	got, err := NewScanner(defaultExtensions).Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != filepath.Join(root, "link.zip") || got[1] != filepath.Join(root, "real.zip") {
		t.Fatalf("expected link.zip and real.zip, got %v", got)
	}
}

func TestScanSkipsUnreadableSubdirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.zip"))
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "hidden.zip"))
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o750) })

	got, err := NewScanner(defaultExtensions).Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "ok.zip") {
		t.Fatalf("expected only ok.zip, got %v", got)
	}
}
