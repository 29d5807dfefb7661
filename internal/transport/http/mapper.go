package http

import (
	"github.com/xzytten/eventsy-chat-server/internal/proto"
	"github.com/xzytten/eventsy-chat-server/internal/relay"
)

// decodeInbound maps a wire frame to a hub command. Validation failures are
// returned as relay errors to be reported to the sender; the connection
// stays open either way.
func decodeInbound(inbound proto.Inbound) (*relay.Command, *relay.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		return &relay.Command{Kind: relay.CommandJoin}, nil
	case proto.InboundTypeMessage:
		return &relay.Command{
			Kind:   relay.CommandMessage,
			Text:   inbound.Text,
			ChatID: inbound.ChatID,
		}, nil
	case proto.InboundTypeLeave:
		return &relay.Command{Kind: relay.CommandLeave}, nil
	case proto.InboundTypePing:
		return &relay.Command{Kind: relay.CommandPing}, nil
	case proto.InboundTypeChangeChat:
		// The text field carries the target conversation id.
		if inbound.Text == "" {
			return nil, &relay.Error{Code: relay.ErrCodeBadRequest, Message: "Chat id is required"}
		}
		return &relay.Command{Kind: relay.CommandChangeChat, ChatID: inbound.Text}, nil
	case proto.InboundTypeChatsInfo:
		// The text field carries the optional filter substring.
		return &relay.Command{Kind: relay.CommandChatsInfo, Filter: inbound.Text}, nil
	default:
		return nil, &relay.Error{
			Code:    relay.ErrCodeUnknownType,
			Message: "Unknown message type: " + inbound.Type,
		}
	}
}

// outboundFromEvent projects a hub event onto a wire frame. EventProbe is
// handled by the write loop and never reaches this mapper.
func outboundFromEvent(event *relay.Event) any {
	ts := proto.FormatTime(event.Timestamp)

	switch event.Kind {
	case relay.EventConnectionEstablished:
		return proto.ConnectionEstablished{
			Type:      proto.OutboundTypeConnectionEstablished,
			ClientID:  event.ClientID,
			Timestamp: ts,
		}
	case relay.EventJoinSuccess:
		return proto.JoinSuccess{
			Type:      proto.OutboundTypeJoinSuccess,
			Username:  event.Username,
			ClientID:  event.ClientID,
			Timestamp: ts,
		}
	case relay.EventChatHistory:
		messages := make([]proto.HistoryMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, proto.HistoryMessage{
				Type:      proto.OutboundTypeMessage,
				Username:  msg.SenderName,
				Text:      msg.Text,
				Timestamp: proto.FormatTime(msg.CreatedAt),
			})
		}
		return proto.ChatHistory{
			Type:     proto.OutboundTypeChatHistory,
			Messages: messages,
		}
	case relay.EventMessage:
		return proto.Message{
			Type:      proto.OutboundTypeMessage,
			Username:  event.Username,
			Text:      event.Text,
			Timestamp: ts,
		}
	case relay.EventUserLeft:
		return proto.UserLeft{
			Type:        proto.OutboundTypeUserLeft,
			Username:    event.Username,
			OnlineUsers: event.OnlineUsers,
			Timestamp:   ts,
		}
	case relay.EventUserCount:
		return proto.UserCount{
			Type:      proto.OutboundTypeUserCount,
			Count:     event.Count,
			Timestamp: ts,
		}
	case relay.EventPong:
		return proto.Pong{Type: proto.OutboundTypePong, Timestamp: ts}
	case relay.EventChatsInfo:
		chats := make([]proto.ChatSummary, 0, len(event.Chats))
		for _, chat := range event.Chats {
			chats = append(chats, proto.ChatSummary{
				ID: chat.ID,
				Client: proto.ChatClient{
					Name:  chat.ParticipantName,
					Email: chat.ParticipantEmail,
				},
				LastMessage: chat.LastMessage,
			})
		}
		return proto.ChatsInfo{Type: proto.OutboundTypeChatsInfo, Chats: chats}
	case relay.EventError:
		msg := "unknown error"
		if event.Error != nil {
			msg = event.Error.Message
		}
		return proto.Error{Type: proto.OutboundTypeError, Message: msg, Timestamp: ts}
	default:
		return proto.Error{Type: proto.OutboundTypeError, Message: "unknown event", Timestamp: ts}
	}
}
