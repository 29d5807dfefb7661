package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/xzytten/eventsy-chat-server/internal/config"
	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// Hub routes frames between sessions. It owns the registry: registration,
// dispatch, liveness checks and fan-out all run on the single Run goroutine,
// so sessions and the registry need no locking.
type Hub struct {
	cfg       config.RelayConfig
	convs     store.ConversationStore
	directory store.UserDirectory
	registry  *Registry
	log       *zerolog.Logger

	register   chan *Session
	unregister chan *Session
	commands   chan sessionCommand
	quit       chan struct{}
}

type sessionCommand struct {
	sess *Session
	cmd  *Command
}

// NewHub builds a hub around an injected registry and store.
func NewHub(registry *Registry, convs store.ConversationStore, directory store.UserDirectory, cfg config.RelayConfig, logger *zerolog.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		convs:      convs,
		directory:  directory,
		registry:   registry,
		log:        logger,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		commands:   make(chan sessionCommand),
		quit:       make(chan struct{}),
	}
}

// Register hands a freshly upgraded session to the hub.
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.quit:
	}
}

// Unregister removes a session after its connection closed or errored.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.quit:
	}
}

// Dispatch hands a decoded inbound command to the hub.
func (h *Hub) Dispatch(s *Session, cmd *Command) {
	select {
	case h.commands <- sessionCommand{sess: s, cmd: cmd}:
	case <-h.quit:
	}
}

// Run processes hub traffic until ctx is cancelled. It must be called
// exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)

	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	stats := time.NewTicker(h.cfg.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case s := <-h.register:
			h.onRegister(s)
		case s := <-h.unregister:
			h.onDisconnect(s)
		case sc := <-h.commands:
			h.dispatch(ctx, sc.sess, sc.cmd)
		case <-heartbeat.C:
			h.checkLiveness()
		case <-stats.C:
			h.log.Info().
				Int("clients", h.registry.Len()).
				Int("online_users", h.registry.OnlineCount()).
				Msg("relay stats")
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) onRegister(s *Session) {
	if replaced := h.registry.Add(s); replaced != nil {
		// Later connection with the same identity supersedes the earlier one.
		h.log.Info().Str("client_id", replaced.Email).Msg("session superseded")
		close(replaced.Events)
	}

	h.log.Info().Str("client_id", s.Email).Str("role", string(s.Role)).Msg("client connected")

	h.send(s, &Event{
		Kind:      EventConnectionEstablished,
		ClientID:  s.Email,
		Timestamp: time.Now(),
	})
}

// onDisconnect runs the full cleanup for a closed or stale session: removal,
// the user_left broadcast if the session was online, and a count refresh.
func (h *Hub) onDisconnect(s *Session) {
	if !h.registry.Remove(s) {
		return
	}
	close(s.Events)

	h.log.Info().Str("client_id", s.Email).Msg("client disconnected")

	if s.Online() {
		h.broadcast(&Event{
			Kind:        EventUserLeft,
			Username:    s.Name,
			OnlineUsers: h.registry.OnlineCount(),
			Timestamp:   time.Now(),
		}, s)
	}
	h.broadcastUserCount()
}

func (h *Hub) dispatch(ctx context.Context, s *Session, cmd *Command) {
	if h.registry.Get(s.Email) != s {
		// Session already removed or superseded; drop the frame.
		return
	}

	var err *Error
	switch cmd.Kind {
	case CommandJoin:
		err = h.handleJoin(ctx, s)
	case CommandMessage:
		err = h.handleMessage(ctx, s, cmd)
	case CommandLeave:
		h.handleLeave(s)
	case CommandPing:
		h.handlePing(s)
	case CommandChangeChat:
		err = h.handleChangeChat(ctx, s, cmd)
	case CommandChatsInfo:
		err = h.handleChatsInfo(ctx, s, cmd)
	case CommandHeartbeatAck:
		s.IsAlive = true
		s.LastPing = time.Now()
	default:
		err = relayError(ErrCodeUnknownType, fmt.Sprintf("unknown command kind: %d", cmd.Kind))
	}

	if err != nil {
		h.sendError(s, err)
	}
}

func (h *Hub) handleJoin(ctx context.Context, s *Session) *Error {
	if s.IsAdmin() {
		summaries, err := h.chatSummaries(ctx, "")
		if err != nil {
			return err
		}
		h.send(s, &Event{Kind: EventChatsInfo, Chats: summaries, Timestamp: time.Now()})
	} else {
		conv, err := h.convs.FindOrCreateConversation(ctx, s.Email)
		if err != nil {
			return h.storeError(s, "find conversation", err)
		}
		msgs, err := h.convs.ListMessages(ctx, conv.ID)
		if err != nil {
			return h.storeError(s, "load history", err)
		}
		h.send(s, &Event{Kind: EventChatHistory, Messages: msgs, Timestamp: time.Now()})
	}

	s.State = StateJoined
	h.log.Info().Str("client_id", s.Email).Str("username", s.Name).Msg("client joined")

	h.send(s, &Event{
		Kind:      EventJoinSuccess,
		Username:  s.Name,
		ClientID:  s.Email,
		Timestamp: time.Now(),
	})
	h.broadcastUserCount()
	return nil
}

func (h *Hub) handleMessage(ctx context.Context, s *Session, cmd *Command) *Error {
	// Only joined sessions carry a bound display name; leave unbinds it.
	text := strings.TrimSpace(cmd.Text)
	if text == "" || !s.Online() {
		return relayError(ErrCodeBadRequest, "Missing required fields")
	}
	if utf8.RuneCountInString(text) > h.cfg.MaxMessageLength {
		return relayError(ErrCodeMessageTooLong,
			fmt.Sprintf("Message exceeds %d characters", h.cfg.MaxMessageLength))
	}

	var conv *store.Conversation
	if s.IsAdmin() {
		if cmd.ChatID == "" {
			return relayError(ErrCodeNoChatSelected, "No chat selected")
		}
		found, err := h.convs.GetConversation(ctx, cmd.ChatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return relayError(ErrCodeChatNotFound, "Chat not found")
			}
			return h.storeError(s, "find chat", err)
		}
		conv = found
	} else {
		found, err := h.convs.FindOrCreateConversation(ctx, s.Email)
		if err != nil {
			return h.storeError(s, "find conversation", err)
		}
		conv = found
	}

	saved, err := h.convs.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID,
		SenderEmail:    s.Email,
		SenderName:     s.Name,
		Text:           text,
	})
	if err != nil {
		return h.storeError(s, "save message", err)
	}

	// The message reaches every admin session plus exactly the customer the
	// conversation belongs to, never other customers.
	event := &Event{
		Kind:      EventMessage,
		Username:  saved.SenderName,
		Text:      saved.Text,
		Timestamp: saved.CreatedAt,
	}
	h.registry.ForEach(func(recipient *Session) {
		if recipient.IsAdmin() || recipient.Email == conv.Participant {
			h.send(recipient, event)
		}
	})
	return nil
}

// handleLeave marks the user idle. The socket stays open; only the joined
// state is dropped.
func (h *Hub) handleLeave(s *Session) {
	if s.Online() {
		h.broadcast(&Event{
			Kind:        EventUserLeft,
			Username:    s.Name,
			OnlineUsers: h.registry.OnlineCount() - 1,
			Timestamp:   time.Now(),
		}, s)
		s.State = StateConnected
	}
	h.broadcastUserCount()
}

func (h *Hub) handlePing(s *Session) {
	s.IsAlive = true
	s.LastPing = time.Now()
	h.send(s, &Event{Kind: EventPong, Timestamp: time.Now()})
}

func (h *Hub) handleChangeChat(ctx context.Context, s *Session, cmd *Command) *Error {
	if !s.IsAdmin() {
		return relayError(ErrCodeForbidden, "Admin access required")
	}

	conv, err := h.convs.GetConversation(ctx, cmd.ChatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return relayError(ErrCodeChatNotFound, "Chat not found")
		}
		return h.storeError(s, "find chat", err)
	}

	msgs, err := h.convs.ListMessages(ctx, conv.ID)
	if err != nil {
		return h.storeError(s, "load history", err)
	}

	h.send(s, &Event{Kind: EventChatHistory, Messages: msgs, Timestamp: time.Now()})
	return nil
}

func (h *Hub) handleChatsInfo(ctx context.Context, s *Session, cmd *Command) *Error {
	if !s.IsAdmin() {
		return relayError(ErrCodeForbidden, "Admin access required")
	}

	summaries, err := h.chatSummaries(ctx, cmd.Filter)
	if err != nil {
		return err
	}
	h.send(s, &Event{Kind: EventChatsInfo, Chats: summaries, Timestamp: time.Now()})
	return nil
}

// checkLiveness ages out sessions that missed a heartbeat round and probes
// the rest. Stale sessions get the same cleanup as an ordinary disconnect.
func (h *Hub) checkLiveness() {
	var stale []*Session
	h.registry.ForEach(func(s *Session) {
		if !s.IsAlive {
			stale = append(stale, s)
			return
		}
		s.IsAlive = false
		h.send(s, &Event{Kind: EventProbe, Timestamp: time.Now()})
	})

	for _, s := range stale {
		h.log.Warn().Str("client_id", s.Email).Msg("client failed heartbeat, terminating")
		h.onDisconnect(s)
	}
}

func (h *Hub) shutdown() {
	h.log.Info().Int("clients", h.registry.Len()).Msg("closing all sessions")
	h.registry.ForEach(func(s *Session) {
		close(s.Events)
	})
}

func (h *Hub) broadcastUserCount() {
	h.broadcast(&Event{
		Kind:      EventUserCount,
		Count:     h.registry.OnlineCount(),
		Timestamp: time.Now(),
	}, nil)
}

func (h *Hub) broadcast(event *Event, exclude *Session) {
	h.registry.ForEach(func(s *Session) {
		if s == exclude {
			return
		}
		h.send(s, event)
	})
}

func (h *Hub) send(s *Session, event *Event) {
	select {
	case s.Events <- event:
	default:
		// Drop if slow consumer.
		h.log.Warn().Str("client_id", s.Email).Msg("dropping event for slow consumer")
	}
}

func (h *Hub) sendError(s *Session, relayErr *Error) {
	h.send(s, &Event{Kind: EventError, Error: relayErr, Timestamp: time.Now()})
}

// storeError logs a persistence failure and converts it to a generic error
// frame for the initiating session.
func (h *Hub) storeError(s *Session, op string, err error) *Error {
	h.log.Error().Err(err).Str("client_id", s.Email).Str("op", op).Msg("store operation failed")
	return relayError(ErrCodeStoreFailure, "Internal error, try again")
}
