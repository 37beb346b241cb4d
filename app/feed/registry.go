package feed

import (
	"log/slog"
	"sync"
	"time"
)

// Registry holds the live feed sessions keyed by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*FeedSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*FeedSession),
	}
}

func (r *Registry) Add(s *FeedSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(sessionID string) *FeedSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle closes and removes sessions idle for longer than ttl.
// Sessions are snapshotted first so session mutexes are never taken while
// holding the registry lock.
func (r *Registry) SweepIdle(ttl time.Duration) int {
	r.mu.RLock()
	snapshot := make([]*FeedSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	cutoff := time.Now().Add(-ttl)
	swept := 0
	for _, s := range snapshot {
		s.mu.Lock()
		stale := !s.closed && s.lastActivity.Before(cutoff)
		if stale {
			s.close()
		}
		s.mu.Unlock()

		if stale {
			r.Remove(s.ID)
			swept++
			slog.Debug("Swept idle feed session", "session", s.ID, "user", s.UserID)
		}
	}
	return swept
}

// CloseAll tears down every session; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*FeedSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.close()
		s.mu.Unlock()
	}
}
