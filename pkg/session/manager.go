package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/metrics"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

var (
	// ErrSessionNotFound is returned for operations on unknown session IDs.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionClosed is returned when a session is shutting down.
	ErrSessionClosed = errors.New("session: closed")

	// ErrDebugDisabled is returned for debug state requests when the
	// service runs without debug introspection.
	ErrDebugDisabled = errors.New("session: debug state disabled")
)

// ManagerConfig controls the session registry.
type ManagerConfig struct {
	// SessionTimeout is how long a session may sit idle before the
	// janitor evicts it.
	SessionTimeout time.Duration

	// CleanupInterval is how often the janitor scans for idle sessions.
	CleanupInterval time.Duration

	// Backend selects the secondary classifier implementation for new
	// sessions.
	Backend vad.Backend

	// Debug enables the debug state endpoint.
	Debug bool
}

// DefaultManagerConfig returns the standard registry settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SessionTimeout:  5 * time.Minute,
		CleanupInterval: time.Minute,
		Backend:         vad.BackendLocal,
		Debug:           false,
	}
}

// Manager owns the session registry: creation, resumption, lookup and
// idle eviction. All methods are safe for concurrent use.
type Manager struct {
	cfg   ManagerConfig
	clock vad.Clock
	mets  *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session

	janitorCancel context.CancelFunc
	janitorDone   chan struct{}
}

// NewManager creates a registry and starts its eviction janitor.
func NewManager(cfg ManagerConfig, clock vad.Clock, mets *metrics.Metrics) *Manager {
	if clock == nil {
		clock = vad.SystemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:           cfg,
		clock:         clock,
		mets:          mets,
		sessions:      make(map[string]*Session),
		janitorCancel: cancel,
		janitorDone:   make(chan struct{}),
	}
	go m.janitor(ctx)
	return m
}

// Init creates a session, or resumes an existing one under the same ID.
// A resumed session keeps its noise profile, configuration and machine
// state; the patch (if any) is applied on top. Returns the session and
// whether it was newly created.
func (m *Manager) Init(ctx context.Context, id string, patch *events.ConfigPatch, sink EventSink) (*Session, bool, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		// Validate the patch before taking over the sink: a rejected
		// resume must leave the session attached to its current client.
		if patch != nil {
			if _, err := s.UpdateConfig(ctx, *patch); err != nil {
				return nil, false, err
			}
		}
		s.SetSink(sink)
		s.Touch()
		log.Printf("[session %s] resumed", id)
		return s, false, nil
	}
	m.mu.Unlock()

	cfg := DefaultConfig()
	if patch != nil {
		cfg = Merge(cfg, *patch)
	}
	if err := Validate(cfg); err != nil {
		return nil, false, err
	}

	s, err := newSession(id, cfg, m.cfg.Backend, m.clock, m.mets, sink)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		// Lost the race to another connection initializing the same ID.
		m.mu.Unlock()
		s.Close()
		existing.SetSink(sink)
		existing.Touch()
		return existing, false, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	s.start()
	m.mets.SessionOpened()
	log.Printf("[session %s] created (backend=%s)", id, m.cfg.Backend)
	return s, true, nil
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ProcessAudio queues a chunk for asynchronous processing.
func (m *Manager) ProcessAudio(id string, payload []byte) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.EnqueueAudio(payload)
	return nil
}

// ProcessAudioSync processes a chunk and returns once it is done.
func (m *Manager) ProcessAudioSync(ctx context.Context, id string, payload []byte) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.ProcessSync(ctx, payload)
}

// UpdateConfig applies a partial config update to a session.
func (m *Manager) UpdateConfig(ctx context.Context, id string, patch events.ConfigPatch) (events.Config, error) {
	s, err := m.Get(id)
	if err != nil {
		return events.Config{}, err
	}
	return s.UpdateConfig(ctx, patch)
}

// ForceRecalibration restarts noise calibration for a session.
func (m *Manager) ForceRecalibration(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.ForceRecalibration(ctx)
}

// DebugState returns a session introspection snapshot, if enabled.
func (m *Manager) DebugState(ctx context.Context, id string) (events.DebugState, error) {
	if !m.cfg.Debug {
		return events.DebugState{}, ErrDebugDisabled
	}
	s, err := m.Get(id)
	if err != nil {
		return events.DebugState{}, err
	}
	return s.DebugState(ctx)
}

// Detach drops a session's event sink, keeping the session alive for a
// later resume. Called when a client connection goes away.
func (m *Manager) Detach(id string) {
	if s, err := m.Get(id); err == nil {
		s.SetSink(nil)
		log.Printf("[session %s] detached", id)
	}
}

// Remove tears a session down and removes it from the registry.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.mets.SessionClosed()
	log.Printf("[session %s] removed", id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) janitor(ctx context.Context) {
	defer close(m.janitorDone)
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	now := m.clock.Now()
	var expired []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.cfg.SessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range expired {
		if m.Remove(id) {
			m.mets.SessionEvicted()
			log.Printf("[session %s] evicted after %s idle", id, m.cfg.SessionTimeout)
		}
	}
}

// Close stops the janitor and tears down every session.
func (m *Manager) Close() {
	m.janitorCancel()
	<-m.janitorDone

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		m.mets.SessionClosed()
	}
}
