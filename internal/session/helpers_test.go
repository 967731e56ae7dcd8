package session

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"zipdive/internal/archive"
	"zipdive/internal/layer"
)

var testExtensions = []string{"zip", "rar", "7z", "tar", "gz", "bz2"}

// unzipExtractor stands in for the external tool by unpacking zip files in-process.
func unzipExtractor() archive.Extractor {
	return archive.ExtractorFunc(func(_ context.Context, src, dst, _ string) error {
		reader, err := zip.OpenReader(src)
		if err != nil {
			return &archive.ToolError{Archive: src, Stderr: err.Error()}
		}
		defer func() { _ = reader.Close() }()
		for _, entry := range reader.File {
			if err := unzipEntry(entry, dst); err != nil {
				return &archive.ToolError{Archive: src, Stderr: err.Error()}
			}
		}
		return nil
	})
}

func unzipEntry(entry *zip.File, dst string) error {
	target := filepath.Join(dst, filepath.FromSlash(entry.Name))
	if strings.HasSuffix(entry.Name, "/") {
		return os.MkdirAll(target, 0o750)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(target) //nolint:gosec // test fixture
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil { //nolint:gosec // test fixture
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path) //nolint:gosec // test fixture
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

// nestedFixture builds src/outer.zip -> inner.zip -> note.txt and returns (src, out).
func nestedFixture(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(out, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	innerPath := filepath.Join(root, "inner.zip")
	writeZip(t, innerPath, map[string][]byte{"note.txt": []byte("hello")})
	inner, err := os.ReadFile(innerPath) //nolint:gosec // test fixture
	if err != nil {
		t.Fatalf("read inner: %v", err)
	}
	writeZip(t, filepath.Join(src, "outer.zip"), map[string][]byte{"inner.zip": inner})
	return src, out
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newEngine(extractor archive.Extractor) *layer.Engine {
	return layer.NewEngine(layer.Options{Extensions: testExtensions, Extractor: extractor})
}

// waitForEvent reads from events until one matches kind and depth.
func waitForEvent(t *testing.T, events <-chan layer.Event, kind layer.EventKind, depth int) layer.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed before %s for layer %d", kind, depth)
			}
			if ev.Kind == kind && ev.Layer == depth {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s on layer %d", kind, depth)
		}
	}
}

func waitFinished(t *testing.T, sess *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !sess.Wait(ctx) {
		t.Fatalf("session did not finish: %+v", sess.Snapshot())
	}
}

func noopExtractor() archive.Extractor {
	return archive.ExtractorFunc(func(context.Context, string, string, string) error { return nil })
}

// manyArchives creates n empty .zip files under a fresh input root.
func manyArchives(t *testing.T, n int) string {
	t.Helper()
	in := t.TempDir()
	for i := range n {
		touch(t, filepath.Join(in, fmt.Sprintf("a%04d.zip", i)))
	}
	return in
}

// countingStore records how often snapshots are saved and keeps the last one.
type countingStore struct {
	mu    sync.Mutex
	saves int
	last  Snapshot
}

func (c *countingStore) SaveSession(_ context.Context, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.last = snap
	return nil
}

func (c *countingStore) LoadSessions(context.Context) ([]Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []Snapshot{c.last}, nil
}

func (c *countingStore) stats() (int, Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves, c.last
}
