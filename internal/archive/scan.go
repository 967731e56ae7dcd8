package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Scanner finds archives in a directory tree by file extension.
type Scanner struct {
	extensions map[string]struct{}
}

// NewScanner builds a scanner for the given extensions. Extensions are
// matched case-insensitively against the final extension of a file name,
// with or without a leading dot.
func NewScanner(extensions []string) *Scanner {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return &Scanner{extensions: allowed}
}

// IsArchive reports whether the final extension of path is in the scanner's set.
// "data.tar.gz" is classified by "gz" alone.
func (s *Scanner) IsArchive(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	_, ok := s.extensions[ext]
	return ok
}

// Scan walks dir recursively and returns every archive in traversal order.
// Entries that cannot be read are skipped; only a missing or unreadable root fails.
func (s *Scanner) Scan(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSearchFailed, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	var archives []string
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			log.Debug().Str("path", path).Err(err).Msg("skipping unreadable entry")
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !s.IsArchive(path) {
			return nil
		}
		if isRegularFile(path, entry) {
			archives = append(archives, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSearchFailed, dir, walkErr)
	}
	return archives, nil
}

// isRegularFile follows symlinks; a broken link is not a file.
func isRegularFile(path string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(path)
	return err == nil && target.Mode().IsRegular()
}
