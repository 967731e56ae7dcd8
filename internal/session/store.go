package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	fileutil "zipdive/internal/file"
)

// SessionStore persists session snapshots for later inspection. Stored
// sessions are never resumed.
type SessionStore interface {
	SaveSession(ctx context.Context, snap Snapshot) error
	LoadSessions(ctx context.Context) ([]Snapshot, error)
}

// fileStore keeps one status.json per session under dataDir/sessions/<id>.
type fileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) SessionStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) sessionsDir() string {
	return filepath.Join(s.dataDir, "sessions")
}

func (s *fileStore) statusPath(id string) string {
	return filepath.Join(s.sessionsDir(), id, "status.json")
}

func (s *fileStore) SaveSession(_ context.Context, snap Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("save session: empty id")
	}
	return fileutil.WriteJSONAtomic(s.statusPath(snap.ID), snap) //nolint:wrapcheck
}

// LoadSessions returns stored snapshots, oldest first. Unreadable entries are skipped.
func (s *fileStore) LoadSessions(_ context.Context) ([]Snapshot, error) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	snaps := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.Before(snaps[j].CreatedAt) })
	return snaps, nil
}
