package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// DefaultMaxSessions bounds concurrently open sessions.
const DefaultMaxSessions = 16

// Manager owns the open sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	dispatcher  *domain.EventDispatcher
	engineOpts  []engine.Option
	maxSessions int
	now         func() time.Time
}

// NewManager creates a manager. Engines publish to dispatcher and are built
// with engineOpts in addition to the session's own id.
func NewManager(dispatcher *domain.EventDispatcher, engineOpts ...engine.Option) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		dispatcher:  dispatcher,
		engineOpts:  engineOpts,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
}

// Open loads the exercise at path and starts a session for it.
func (m *Manager) Open(path string) (*Session, error) {
	b, err := bundle.Open(path)
	if err != nil {
		return nil, err
	}
	sess, err := m.start(b.Document, path, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return sess, nil
}

// Start begins a session for an already-loaded document.
func (m *Manager) Start(doc *domain.ExerciseDocument, source string) (*Session, error) {
	return m.start(doc, source, nil)
}

func (m *Manager) start(doc *domain.ExerciseDocument, source string, b *bundle.Bundle) (*Session, error) {
	m.mu.Lock()
	full := len(m.sessions) >= m.maxSessions
	m.mu.Unlock()
	if full {
		return nil, ErrTooManySessions
	}

	id := uuid.New()
	opts := append([]engine.Option{engine.WithSessionID(id)}, m.engineOpts...)
	if m.dispatcher != nil {
		opts = append(opts, engine.WithDispatcher(m.dispatcher))
	}
	eng, err := engine.New(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	now := m.now()
	sess := &Session{
		ID:         id.String(),
		BundlePath: source,
		Title:      doc.Title,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		engine:     eng,
		bundle:     b,
	}
	eng.OnCompleted(func(engine.Completion) {
		m.setStatus(sess.ID, StatusCompleted)
	})

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	slog.Info("session started", "session_id", sess.ID, "title", sess.Title, "source", source)
	return sess, nil
}

func (m *Manager) setStatus(id string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Status = status
		s.UpdatedAt = m.now()
	}
}

// Get returns a copy of the session's metadata along with its engine.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

// Touch records activity on a session.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.UpdatedAt = m.now()
	}
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close ends a session and releases its engine. An unfinished session is
// recorded as abandoned.
func (m *Manager) Close(id string) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	delete(m.sessions, id)
	if s.Status == StatusActive {
		s.Status = StatusAbandoned
	}
	s.UpdatedAt = m.now()
	final := *s
	m.mu.Unlock()

	s.close()
	slog.Info("session closed", "session_id", id, "status", final.Status)
	return final, nil
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_, _ = m.Close(id)
	}
}
