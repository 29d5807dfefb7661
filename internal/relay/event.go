package relay

import (
	"time"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// EventKind is a notification the hub emits to sessions.
type EventKind int

const (
	// EventConnectionEstablished greets a session right after registration.
	EventConnectionEstablished EventKind = iota
	// EventJoinSuccess confirms a processed join.
	EventJoinSuccess
	// EventChatHistory delivers a conversation's messages, oldest first.
	EventChatHistory
	// EventMessage delivers a chat message.
	EventMessage
	// EventUserLeft notifies that a user went idle or disconnected.
	EventUserLeft
	// EventUserCount carries the refreshed online-user figure.
	EventUserCount
	// EventPong answers an application-level ping.
	EventPong
	// EventError reports a recoverable per-frame failure.
	EventError
	// EventChatsInfo delivers the admin directory view.
	EventChatsInfo
	// EventProbe asks the transport to send a protocol-level ping.
	EventProbe
)

// ChatSummary is one conversation of the admin directory view.
type ChatSummary struct {
	ID               string
	ParticipantName  string
	ParticipantEmail string
	LastMessage      string
}

// Event is sent to sessions to describe what happened.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// ClientID accompanies connection_established and join_success.
	ClientID string
	// Username is the display name the event is about.
	Username string
	// Text is the message body for EventMessage.
	Text string
	// OnlineUsers is the decremented count carried by EventUserLeft.
	OnlineUsers int
	// Count is the online-user figure for EventUserCount.
	Count int
	// Messages holds history for EventChatHistory.
	Messages []*store.Message
	// Chats holds the directory for EventChatsInfo.
	Chats []ChatSummary
	// Error is non-nil for EventError.
	Error *Error
}
