package relay

import (
	"time"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	// StateConnected means the handshake succeeded but no join frame has
	// been processed yet. Connected sessions do not count as online.
	StateConnected SessionState = iota
	// StateJoined means the session has joined the chat and counts toward
	// the online-user figure.
	StateJoined
)

// Session is one live connection as seen by the hub. All fields except
// Events are owned by the hub goroutine after registration.
type Session struct {
	Email string
	Name  string
	Role  store.Role
	State SessionState

	// IsAlive is flipped off by the liveness monitor and back on by
	// ping frames or pong control frames.
	IsAlive  bool
	LastPing time.Time

	// Events carries outbound events to the connection's write loop.
	// Closed by the hub when the session is removed.
	Events chan *Event
}

// NewSession constructs a session in the Connected state.
func NewSession(email, name string, role store.Role) *Session {
	return &Session{
		Email:    email,
		Name:     name,
		Role:     role,
		State:    StateConnected,
		IsAlive:  true,
		LastPing: time.Now(),
		Events:   make(chan *Event, 16),
	}
}

// IsAdmin reports whether the session belongs to a support admin.
func (s *Session) IsAdmin() bool {
	return s.Role == store.RoleAdmin
}

// Online reports whether the session counts toward the online-user figure.
func (s *Session) Online() bool {
	return s.State == StateJoined && s.Name != ""
}
