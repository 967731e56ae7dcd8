package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"zipdive/internal/archive"
	fileutil "zipdive/internal/file"
	"zipdive/internal/layer"
)

const (
	subscriberBuffer = 64
	// persistInterval throttles snapshot writes for per-file progress.
	// State transitions are always written.
	persistInterval = time.Second
)

// Session drives the recursive extraction of one input tree. Layers run one
// at a time; a single control goroutine applies their progress events, so
// layer state only changes there or under mu when a new layer is appended.
type Session struct {
	id        string
	createdAt time.Time
	runner    LayerRunner
	store     SessionStore
	baseCtx   context.Context

	mu          sync.RWMutex
	state       OverallState
	autoAdvance bool
	inputRoot   string
	outputRoot  string
	password    string
	layers      []*layer.Layer
	history     []layer.Event
	subscribers map[int]*subscriber
	nextSubID   int
	closed      bool
	// running counts layers whose runner has not yet delivered its final
	// event; idle is closed whenever it is zero.
	running int
	idle    chan struct{}

	persistMu   sync.Mutex
	lastPersist time.Time
	events      chan layer.Event
	done        chan struct{}
}

// New creates a session in the NeedInit state. store may be nil.
func New(id string, runner LayerRunner, store SessionStore, autoAdvance bool) *Session {
	return &Session{
		id:          id,
		createdAt:   time.Now(),
		runner:      runner,
		store:       store,
		baseCtx:     context.Background(),
		state:       StateNeedInit,
		autoAdvance: autoAdvance,
		subscribers: make(map[int]*subscriber),
		idle:        closedChan(),
		events:      make(chan layer.Event),
		done:        make(chan struct{}),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *Session) ID() string { return s.id }

// SetBaseContext sets the context handed to extraction subprocesses.
// Must be called before Start.
func (s *Session) SetBaseContext(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
}

// Start validates both roots and begins layer 1, reading input and writing output/1.
func (s *Session) Start(input, output, password string) error {
	if !fileutil.IsDir(input) {
		return fmt.Errorf("input: %w: %s", archive.ErrDirectoryNotFound, input)
	}
	if !fileutil.IsDir(output) {
		return fmt.Errorf("output: %w: %s", archive.ErrDirectoryNotFound, output)
	}

	s.mu.Lock()
	if s.state != StateNeedInit {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.inputRoot = filepath.Clean(input)
	s.outputRoot = filepath.Clean(output)
	s.password = password
	s.state = StateRunning
	s.startLayerLocked()
	s.mu.Unlock()

	log.Info().Str("session_id", s.id).Str("input", input).Str("output", output).Msg("session started")
	go s.loop()
	s.persist()
	return nil
}

// Advance creates the next layer by hand. It refuses while auto-advance is
// on, while the last layer is still running or failed, and once a layer
// found no archives. Returns the depth of the new layer.
func (s *Session) Advance() (int, error) {
	s.mu.Lock()
	depth, err := s.advanceLocked()
	s.mu.Unlock()
	if err != nil {
		log.Info().Str("session_id", s.id).Err(err).Msg("advance refused")
		return 0, err
	}
	s.persist()
	return depth, nil
}

func (s *Session) advanceLocked() (int, error) {
	switch {
	case s.state == StateNeedInit:
		return 0, ErrNotStarted
	case s.state == StateFinished:
		return 0, ErrNoFurtherNesting
	case s.autoAdvance:
		return 0, ErrAutoAdvance
	}
	last := s.layers[len(s.layers)-1]
	switch last.State {
	case layer.StateFinished:
		return s.startLayerLocked().Depth, nil
	case layer.StateEmptyArchives:
		return 0, ErrNoFurtherNesting
	case layer.StateError:
		return 0, ErrLayerFailed
	default:
		return 0, ErrLayerNotFinished
	}
}

// SetAutoAdvance switches mode. Turning it on while the last layer is
// already finished starts the next layer right away.
func (s *Session) SetAutoAdvance(enabled bool) {
	s.mu.Lock()
	s.autoAdvance = enabled
	advanced := false
	if enabled && s.state == StateRunning && s.layers[len(s.layers)-1].State == layer.StateFinished {
		s.startLayerLocked()
		advanced = true
	}
	s.mu.Unlock()

	log.Info().Str("session_id", s.id).Bool("auto_advance", enabled).Msg("auto-advance toggled")
	if advanced {
		s.persist()
	}
}

// startLayerLocked appends layer n and runs it in the background. Layer n
// reads output/(n-1), or the input root for n == 1, and writes output/n.
func (s *Session) startLayerLocked() *layer.Layer {
	depth := len(s.layers) + 1
	input := s.inputRoot
	if depth > 1 {
		input = filepath.Join(s.outputRoot, strconv.Itoa(depth-1))
	}
	output := filepath.Join(s.outputRoot, strconv.Itoa(depth))

	current := layer.New(depth, input, output)
	s.layers = append(s.layers, current)

	if s.running == 0 {
		s.idle = make(chan struct{})
	}
	s.running++

	ctx, password := s.baseCtx, s.password
	go s.runner.Run(ctx, depth, input, output, password, s.emit)

	log.Info().Str("session_id", s.id).Int("layer", depth).Str("input", input).Str("output", output).Msg("layer created")
	return current
}

func (s *Session) emit(ev layer.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) loop() {
	for ev := range s.events {
		if s.handle(ev) {
			return
		}
	}
}

// handle applies one event and fans it out. It returns true once the whole
// session has finished.
func (s *Session) handle(ev layer.Event) bool {
	s.mu.Lock()
	if ev.Layer < 1 || ev.Layer > len(s.layers) {
		s.mu.Unlock()
		log.Warn().Str("session_id", s.id).Int("layer", ev.Layer).Msg("event for unknown layer")
		return false
	}
	current := s.layers[ev.Layer-1]
	before := current.State
	if !current.Apply(ev) {
		s.mu.Unlock()
		if isFinalEvent(ev) {
			// Tasks may have completed after the layer failed.
			s.persist()
			s.layerReported()
		}
		return false
	}
	s.history = append(s.history, ev)
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}

	transition := current.State != before
	finished := false
	switch {
	case !transition:
	case current.State == layer.StateEmptyArchives:
		s.state = StateFinished
		s.closed = true
		s.subscribers = make(map[int]*subscriber)
		finished = true
	case current.State == layer.StateFinished:
		if s.autoAdvance && ev.Layer == len(s.layers) {
			s.startLayerLocked()
		}
	case current.State == layer.StateError:
		log.Error().Str("session_id", s.id).Int("layer", ev.Layer).Str("error", current.Error).Msg("layer failed")
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.push(ev)
	}

	if transition {
		s.persist()
	} else {
		s.persistThrottled()
	}
	if finished {
		for _, sub := range subs {
			sub.finish()
		}
		close(s.done)
		log.Info().Str("session_id", s.id).Int("layers", ev.Layer).Msg("recursive extraction finished")
	}
	if isFinalEvent(ev) {
		s.layerReported()
	}
	return finished
}

// isFinalEvent reports whether ev is the last event a runner emits for its layer.
func isFinalEvent(ev layer.Event) bool {
	switch ev.Kind {
	case layer.EventLayerFinished, layer.EventEmptyArchives, layer.EventFailed:
		return true
	}
	return false
}

// layerReported marks a runner as done once its final event has been applied
// and persisted. Any auto-advanced layer has been counted by then.
func (s *Session) layerReported() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == 0 {
		return
	}
	s.running--
	if s.running == 0 {
		close(s.idle)
	}
}

// Subscribe returns every event applied so far plus a channel of the events
// that follow. The channel is closed when the session finishes; cancel stops
// delivery early and must be called by subscribers that stop reading.
func (s *Session) Subscribe() ([]layer.Event, <-chan layer.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := append([]layer.Event(nil), s.history...)
	if s.closed {
		ch := make(chan layer.Event)
		close(ch)
		return backlog, ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	sub := newSubscriber()
	s.subscribers[id] = sub
	go sub.pump()

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		sub.stop()
	}
	return backlog, sub.ch, cancel
}

// Done is closed once a layer finds no archives.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes or ctx is done.
// Returns true if the session finished.
func (s *Session) Wait(ctx context.Context) bool {
	select {
	case <-s.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// WaitIdle blocks until no layer is running or ctx is done. A layer counts
// as running until its final event has been applied.
func (s *Session) WaitIdle(ctx context.Context) bool {
	s.mu.RLock()
	idle := s.idle
	s.mu.RUnlock()
	select {
	case <-idle:
		return true
	case <-ctx.Done():
		return false
	}
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layers := make([]layer.Layer, len(s.layers))
	for i, l := range s.layers {
		layers[i] = l.Clone()
	}
	return Snapshot{
		ID:          s.id,
		State:       s.state,
		AutoAdvance: s.autoAdvance,
		InputRoot:   s.inputRoot,
		OutputRoot:  s.outputRoot,
		CreatedAt:   s.createdAt,
		Layers:      layers,
	}
}

func (s *Session) persist() {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.saveLocked()
}

// persistThrottled writes at most once per persistInterval.
func (s *Session) persistThrottled() {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if time.Since(s.lastPersist) < persistInterval {
		return
	}
	s.saveLocked()
}

func (s *Session) saveLocked() {
	s.lastPersist = time.Now()
	if err := s.store.SaveSession(context.Background(), s.Snapshot()); err != nil { // best-effort
		log.Warn().Str("session_id", s.id).Err(err).Msg("persist session failed")
	}
}
