package study

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	// SessionIdleTimeout is how long a session survives without requests.
	// It matches the lifetime of the browser cookie that carries its id.
	SessionIdleTimeout = 7 * 24 * time.Hour
	// EmptySessionIdleTimeout applies to sessions that never loaded a
	// document or changed a setting.
	EmptySessionIdleTimeout = time.Hour
)

type registryEntry struct {
	sess     *Session
	lastSeen time.Time
}

// Registry maps browser session ids to sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*registryEntry), now: time.Now}
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		e = &registryEntry{sess: NewSession(id)}
		r.sessions[id] = e
	}
	e.lastSeen = r.now()
	return e.sess
}

// Lookup returns the session for id without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.sess, true
}

// Len is the number of known sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire drops sessions idle for longer than SessionIdleTimeout, and empty
// ones idle for longer than EmptySessionIdleTimeout. It returns the number
// of sessions removed.
func (r *Registry) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, e := range r.sessions {
		idle := now.Sub(e.lastSeen)
		if idle > SessionIdleTimeout || (idle > EmptySessionIdleTimeout && e.sess.Empty()) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run calls Expire every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Expire()
		}
	}
}

// StudyingSessions returns the ids of sessions currently accruing study time.
func (r *Registry) StudyingSessions() []string {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		sessions = append(sessions, e.sess)
	}
	r.mu.Unlock()

	var ids []string
	for _, sess := range sessions {
		if sess.Studying() {
			ids = append(ids, sess.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
