// Package session tracks which live connections are bound to which user.
package session

import (
	"sync"
)

// Binding is the identity attached to an authenticated connection.
type Binding struct {
	UserID      int64
	Username    string
	DisplayName string
}

// Sink is the outbound side of a connection. Send must not block; it reports
// false when the frame was dropped.
type Sink interface {
	Send(frame []byte) bool
}

// Session is one bound connection as seen by a snapshot.
type Session struct {
	ConnectionID string
	Binding      Binding
	Sink         Sink
}

// Registry maps connection ids to bindings. It is safe for concurrent use and
// is owned by whoever constructs it; there is no package-level instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

// Bind registers connID as authenticated. An existing binding for the same id is
// replaced.
func (r *Registry) Bind(connID string, b Binding, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = Session{
		ConnectionID: connID,
		Binding:      b,
		Sink:         sink,
	}
}

// Unbind removes the binding for connID. It reports whether one existed.
func (r *Registry) Unbind(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return false
	}
	delete(r.sessions, connID)
	return true
}

// Lookup returns the binding for connID.
func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	return s.Binding, ok
}

// Connections returns the ids of every bound connection at call time.
func (r *Registry) Connections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a copy of every bound session. Later binds and unbinds do not
// affect the returned slice.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear drops every binding. Used at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]Session)
}
