package relay

// Registry maps connection identities to live sessions. It is owned by the
// hub goroutine: all mutation and iteration happens there, so no locking is
// needed. It is injected into the hub rather than kept as package state so
// multiple server instances can coexist in tests.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add inserts a session keyed by its email. If a session with the same
// identity already exists, the newer one supersedes it and the old session
// is returned so the caller can shut it down.
func (r *Registry) Add(s *Session) (replaced *Session) {
	replaced = r.sessions[s.Email]
	r.sessions[s.Email] = s
	return replaced
}

// Get returns the session for the given identity, or nil.
func (r *Registry) Get(email string) *Session {
	return r.sessions[email]
}

// Remove deletes the session only if it is still the registered one for its
// identity. Returns false when the session was already superseded or removed.
func (r *Registry) Remove(s *Session) bool {
	if r.sessions[s.Email] != s {
		return false
	}
	delete(r.sessions, s.Email)
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// OnlineCount returns the number of sessions that are fully joined.
func (r *Registry) OnlineCount() int {
	count := 0
	for _, s := range r.sessions {
		if s.Online() {
			count++
		}
	}
	return count
}

// ForEach calls fn for every registered session. fn must not mutate the
// registry.
func (r *Registry) ForEach(fn func(*Session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}
