// Package session keeps one search store per visitor.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightsearch-web/internal/store"
)

const CookieName = "session_id"

type entry struct {
	store    *store.Store
	lastSeen time.Time
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	searcher store.Searcher
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(searcher store.Searcher, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions: make(map[string]*entry),
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID handed out.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Lookup returns the store of an existing session without creating one.
func (m *Manager) Lookup(id string) (*store.Store, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.store, true
}

// Get returns the store of session id, creating it on first use.
func (m *Manager) Get(id string) *store.Store {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		e.lastSeen = now
		return e.store
	}

	e := &entry{store: m.newStore(id), lastSeen: now}
	m.sessions[id] = e
	return e.store
}

// Detached returns a store that is never registered, for callers without a
// session. Nothing outlives the request that uses it.
func (m *Manager) Detached() *store.Store {
	return m.newStore("")
}

func (m *Manager) newStore(id string) *store.Store {
	logger := m.logger.With(zap.String("session", id))
	return store.New(m.searcher, store.WithObserver(func(s store.State) {
		logger.Debug("search state changed",
			zap.Stringer("status", s.Status),
			zap.Uint64("seq", s.Seq),
			zap.Int("results", len(s.Flights)))
	}))
}

// Sweep evicts sessions idle for longer than maxIdle. Sessions with a search
// in flight are kept.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	evicted := 0
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) && !e.store.Snapshot().Loading() {
			delete(m.sessions, id)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Info("evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
