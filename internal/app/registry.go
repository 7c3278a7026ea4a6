package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradeboard/internal/core"
	"go.uber.org/zap"
)

// Reasons a session is closed.
const (
	CloseExpired  = "expired"
	CloseEvicted  = "evicted"
	CloseShutdown = "shutdown"
)

// Factory builds an unstarted session for id.
type Factory func(id string) *Session

// RegistryObserver is told about session counts and teardowns.
type RegistryObserver interface {
	SetActiveSessions(n int)
	ObserveSessionClosed(reason string)
}

// Registry holds the open sessions, bounded in size and idle lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // insertion order for eviction
	maxSize  int
	ttl      time.Duration
	factory  Factory
	baseCtx  context.Context
	logger   *zap.Logger
	observer RegistryObserver
	closed   bool
}

// NewRegistry creates a registry. Sessions are started with baseCtx, so
// they outlive the request that opened them.
func NewRegistry(baseCtx context.Context, maxSize int, ttl time.Duration, factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize < 1 {
		maxSize = 1
	}
	return &Registry{
		sessions: make(map[string]*Session),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		ttl:      ttl,
		factory:  factory,
		baseCtx:  baseCtx,
		logger:   logger,
	}
}

// SetObserver attaches a registry observer.
func (r *Registry) SetObserver(o RegistryObserver) {
	r.observer = o
}

// Get returns an open session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Open returns the session for id, creating and starting one if needed. An
// unknown or malformed id gets a fresh session; a well-formed id whose
// session expired is reopened under the same id so preferences follow it.
// The bool reports whether a session was created.
func (r *Registry) Open(id string) (*Session, bool, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false, core.ErrSessionNotFound
	}
	if s, ok := r.sessions[id]; ok {
		s.Touch()
		r.mu.Unlock()
		return s, false, nil
	}

	r.mu.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	// Build outside the lock: the factory may load preferences.
	s := r.factory(id)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return nil, false, core.ErrSessionNotFound
	}
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		s.Close()
		existing.Touch()
		return existing, false, nil
	}

	// Evict oldest if at capacity
	var evicted *Session
	if len(r.sessions) >= r.maxSize && len(r.order) > 0 {
		oldest := r.order[0]
		evicted = r.sessions[oldest]
		delete(r.sessions, oldest)
		r.order = r.order[1:]
	}

	r.sessions[id] = s
	r.order = append(r.order, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if evicted != nil {
		r.closeSession(evicted, CloseEvicted)
	}
	s.Start(r.baseCtx)
	r.logger.Info("session opened", zap.String("session", id), zap.Int("active", count))
	r.setActive(count)
	return s, true, nil
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	kept := r.order[:0]
	for _, id := range r.order {
		s := r.sessions[id]
		if now.Sub(s.LastSeen()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	count := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		r.closeSession(s, CloseExpired)
	}
	if len(expired) > 0 {
		r.setActive(count)
	}
	return len(expired)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close tears down every session. Later Open calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, id := range r.order {
		all = append(all, r.sessions[id])
	}
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.mu.Unlock()

	for _, s := range all {
		r.closeSession(s, CloseShutdown)
	}
	r.setActive(0)
}

func (r *Registry) closeSession(s *Session, reason string) {
	s.Close()
	r.logger.Info("session closed", zap.String("session", s.ID()), zap.String("reason", reason))
	if r.observer != nil {
		r.observer.ObserveSessionClosed(reason)
	}
}

func (r *Registry) setActive(n int) {
	if r.observer != nil {
		r.observer.SetActiveSessions(n)
	}
}
