package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"zipdive/internal/archive"
	"zipdive/internal/layer"
)

// Options configures a Manager.
type Options struct {
	// DataDir receives session snapshots. Empty disables persistence.
	DataDir                  string
	Extensions               []string
	Extractor                archive.Extractor
	MaxConcurrentExtractions int
	AutoAdvance              bool
}

// Manager owns every session of the process, keyed by id.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	order       []string
	runner      LayerRunner
	store       SessionStore
	autoAdvance bool
	baseCtx     context.Context
}

// NewManager builds a manager. A nil Extractor falls back to the platform's
// 7-Zip binary; on platforms without one every extraction fails with
// archive.ErrUnsupportedPlatform.
func NewManager(opts Options) *Manager {
	extractor := opts.Extractor
	if extractor == nil {
		tool, err := archive.NewSevenZip("", 0)
		if err != nil {
			log.Warn().Err(err).Msg("no extraction tool available")
			extractor = archive.ExtractorFunc(func(context.Context, string, string, string) error { return err })
		} else {
			extractor = tool
		}
	}
	var store SessionStore
	if opts.DataDir != "" {
		store = NewFileStore(opts.DataDir)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		runner: layer.NewEngine(layer.Options{
			Extensions:    opts.Extensions,
			Extractor:     extractor,
			MaxConcurrent: opts.MaxConcurrentExtractions,
		}),
		store:       store,
		autoAdvance: opts.AutoAdvance,
		baseCtx:     context.Background(),
	}
}

// SetBaseContext sets the context used by sessions created afterwards.
// Cancel it on shutdown to stop running extraction subprocesses.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Create starts a new session. Nothing is registered when Start fails.
func (m *Manager) Create(req StartRequest) (*Session, error) {
	m.mu.RLock()
	autoAdvance, ctx := m.autoAdvance, m.baseCtx
	m.mu.RUnlock()
	if req.AutoAdvance != nil {
		autoAdvance = *req.AutoAdvance
	}

	sess := New(uuid.NewString(), m.runner, m.store, autoAdvance)
	sess.SetBaseContext(ctx)
	if err := sess.Start(req.Input, req.Output, req.Password); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.order = append(m.order, sess.ID())
	m.mu.Unlock()
	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	return sess, ok
}

// Lookup is Get returning ErrSessionNotFound.
func (m *Manager) Lookup(id string) (*Session, error) {
	if sess, ok := m.Get(id); ok {
		return sess, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// List returns snapshots of all live sessions in creation order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		snaps = append(snaps, sess.Snapshot())
	}
	return snaps
}

// History returns persisted snapshots, including those of earlier processes.
func (m *Manager) History(ctx context.Context) ([]Snapshot, error) {
	if m.store == nil {
		return nil, nil
	}
	snaps, err := m.store.LoadSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return snaps, nil
}

// WaitAll blocks until no session has a running layer or the context is done.
// Returns true if everything went idle, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		if !sess.WaitIdle(ctx) {
			return false
		}
	}
	return true
}
