// Interactive smoke client for the chat relay.
//
// Mints its own authToken (the secret must match the server's), joins the
// chat and relays stdin lines as messages. Slash commands:
//
//	/chats [filter]  request the admin directory
//	/chat <id>       switch to a conversation (admins)
//	/leave           go idle without disconnecting
//	/ping            application-level heartbeat
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/xzytten/eventsy-chat-server/internal/auth"
	"github.com/xzytten/eventsy-chat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/", "WebSocket address")
	email := flag.String("email", "", "user email (identity)")
	secret := flag.String("secret", "", "jwt secret shared with the server")
	flag.Parse()

	if *email == "" || *secret == "" {
		return errors.New("-email and -secret are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte(*secret),
		Issuer:   "eventsy",
		Audience: "eventsy-chat",
		TTL:      time.Hour,
	}, *email)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)

	dialURL := *addr
	if !strings.Contains(dialURL, "email=") {
		sep := "?"
		if strings.Contains(dialURL, "?") {
			sep = "&"
		}
		dialURL += sep + "email=" + *email
	}

	conn, _, err := websocket.Dial(ctx, dialURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(v interface{}) {
		if writeErr := wsjson.Write(ctx, conn, v); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.Inbound{Type: proto.InboundTypeJoin})

	fmt.Printf("Connected to %s as %s\n", *addr, *email)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	var chatID string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/leave":
			send(proto.Inbound{Type: proto.InboundTypeLeave})
		case line == "/ping":
			send(proto.Inbound{Type: proto.InboundTypePing})
		case strings.HasPrefix(line, "/chats"):
			filter := strings.TrimSpace(strings.TrimPrefix(line, "/chats"))
			send(proto.Inbound{Type: proto.InboundTypeChatsInfo, Text: filter})
		case strings.HasPrefix(line, "/chat "):
			chatID = strings.TrimSpace(strings.TrimPrefix(line, "/chat "))
			send(proto.Inbound{Type: proto.InboundTypeChangeChat, Text: chatID})
		default:
			send(proto.Inbound{Type: proto.InboundTypeMessage, Text: line, ChatID: chatID})
		}
	}

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read: %v", err)
			return
		}

		printFrame(data)
	}
}

func printFrame(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		log.Printf("bad frame: %v", err)
		return
	}

	switch head.Type {
	case proto.OutboundTypeMessage:
		var msg proto.Message
		_ = json.Unmarshal(data, &msg)
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Text)
	case proto.OutboundTypeChatHistory:
		var history proto.ChatHistory
		_ = json.Unmarshal(data, &history)
		fmt.Printf("--- history (%d messages) ---\n", len(history.Messages))
		for _, msg := range history.Messages {
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Username, msg.Text)
		}
	case proto.OutboundTypeChatsInfo:
		var info proto.ChatsInfo
		_ = json.Unmarshal(data, &info)
		fmt.Printf("--- chats (%d) ---\n", len(info.Chats))
		for _, chat := range info.Chats {
			fmt.Printf("%s  %s <%s>  last: %s\n", chat.ID, chat.Client.Name, chat.Client.Email, chat.LastMessage)
		}
	case proto.OutboundTypeUserCount:
		var count proto.UserCount
		_ = json.Unmarshal(data, &count)
		fmt.Printf("* online users: %d\n", count.Count)
	case proto.OutboundTypeUserLeft:
		var left proto.UserLeft
		_ = json.Unmarshal(data, &left)
		fmt.Printf("* %s left (%d online)\n", left.Username, left.OnlineUsers)
	case proto.OutboundTypeError:
		var frame proto.Error
		_ = json.Unmarshal(data, &frame)
		fmt.Printf("! error: %s\n", frame.Message)
	default:
		fmt.Printf("< %s\n", strings.TrimSpace(string(data)))
	}
}
