package relay

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin activates the session and requests history or the
	// admin directory.
	CommandJoin CommandKind = iota
	// CommandMessage sends a chat message.
	CommandMessage
	// CommandLeave marks the user as idle without closing the connection.
	CommandLeave
	// CommandPing is an application-level heartbeat.
	CommandPing
	// CommandChangeChat switches an admin to another conversation.
	CommandChangeChat
	// CommandChatsInfo requests the admin directory view.
	CommandChatsInfo
	// CommandHeartbeatAck records a pong control frame observed by the
	// transport. Never produced by frame decoding.
	CommandHeartbeatAck
)

// Command represents a decoded inbound frame.
type Command struct {
	Kind CommandKind

	// Text is the message body for CommandMessage.
	Text string
	// ChatID is the target conversation: required for admin messages and
	// for CommandChangeChat.
	ChatID string
	// Filter is the optional substring filter for CommandChatsInfo.
	Filter string
}
