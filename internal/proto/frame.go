// Package proto defines the JSON wire format of the chat relay.
// Every frame is a single flat JSON object discriminated by its "type" field.
package proto

import "time"

// Inbound frame types.
const (
	InboundTypeJoin       = "join"
	InboundTypeMessage    = "message"
	InboundTypeLeave      = "leave"
	InboundTypePing       = "ping"
	InboundTypeChangeChat = "change_chat"
	InboundTypeChatsInfo  = "chats_info"
)

// Outbound frame types.
const (
	OutboundTypeConnectionEstablished = "connection_established"
	OutboundTypeJoinSuccess           = "join_success"
	OutboundTypeChatHistory           = "chat_history"
	OutboundTypeMessage               = "message"
	OutboundTypeUserLeft              = "user_left"
	OutboundTypeUserCount             = "user_count"
	OutboundTypePong                  = "pong"
	OutboundTypeError                 = "error"
	OutboundTypeChatsInfo             = "chats_info"
)

// timeLayout matches JavaScript's Date.toISOString, which the storefront
// client parses.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders a timestamp the way the wire protocol expects.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Inbound is a frame received from a client. The relevant fields depend on
// the type: "message" uses Text and (for admins) ChatID; "change_chat" and
// "chats_info" carry their payload in Text.
type Inbound struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	ChatID string `json:"chatId,omitempty"`
}

// ConnectionEstablished greets a client right after the upgrade.
type ConnectionEstablished struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId"`
	Timestamp string `json:"timestamp"`
}

// JoinSuccess confirms a processed join frame.
type JoinSuccess struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	ClientID  string `json:"clientId"`
	Timestamp string `json:"timestamp"`
}

// HistoryMessage is one entry inside a ChatHistory frame.
type HistoryMessage struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ChatHistory delivers a conversation's messages, oldest first.
type ChatHistory struct {
	Type     string           `json:"type"`
	Messages []HistoryMessage `json:"messages"`
}

// Message is a chat message fanned out to recipients.
type Message struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// UserLeft notifies that a user went idle or disconnected.
type UserLeft struct {
	Type        string `json:"type"`
	Username    string `json:"username"`
	OnlineUsers int    `json:"onlineUsers"`
	Timestamp   string `json:"timestamp"`
}

// UserCount carries the current online-user figure.
type UserCount struct {
	Type      string `json:"type"`
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// Pong answers an application-level ping.
type Pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Error reports a recoverable per-frame failure to the sender.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatClient identifies the customer behind a conversation.
type ChatClient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChatSummary is one entry of the admin directory view.
type ChatSummary struct {
	ID          string     `json:"id"`
	Client      ChatClient `json:"client"`
	LastMessage string     `json:"lastMessage"`
}

// ChatsInfo delivers the admin directory view.
type ChatsInfo struct {
	Type  string        `json:"type"`
	Chats []ChatSummary `json:"chats"`
}
