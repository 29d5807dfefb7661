package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/xzytten/eventsy-chat-server/internal/auth"
	"github.com/xzytten/eventsy-chat-server/internal/config"
	"github.com/xzytten/eventsy-chat-server/internal/log"
	"github.com/xzytten/eventsy-chat-server/internal/relay"
	"github.com/xzytten/eventsy-chat-server/internal/store"
	"github.com/xzytten/eventsy-chat-server/internal/store/memory"
)

type wsTestEnv struct {
	srv *httptest.Server
	jwt *auth.JWTConfig
}

func newWSTestEnv(t *testing.T, origins []string) *wsTestEnv {
	t.Helper()

	st := memory.New()
	ctx := context.Background()
	users := []*store.User{
		{Email: "c@x.com", Name: "Chloe", Role: store.RoleCustomer},
		{Email: "admin@eventsy.com", Name: "Support", Role: store.RoleAdmin},
	}
	for _, u := range users {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Relay.AllowedOrigins = origins
	// Long intervals keep probes and stats out of the frame streams below.
	cfg.Relay.HeartbeatInterval = time.Hour
	cfg.Relay.StatsInterval = time.Hour

	logger := log.Nop()
	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("testsecret"),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      time.Hour,
	}
	gate := auth.NewGate(jwtCfg, st, cfg.Relay.AllowedOrigins, logger)
	hub := relay.NewHub(relay.NewRegistry(), st, st, cfg.Relay, logger)

	hubCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewServer(hub, gate, &cfg, logger).Handler)
	t.Cleanup(srv.Close)

	return &wsTestEnv{srv: srv, jwt: jwtCfg}
}

func (env *wsTestEnv) dial(t *testing.T, ctx context.Context, email string) *websocket.Conn {
	t.Helper()

	token, err := auth.GenerateToken(env.jwt, email)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	header := stdhttp.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)
	conn, _, err := websocket.Dial(ctx, env.srv.URL+"/ws?email="+email, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		t.Fatalf("dial as %s: %v", email, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// awaitFrame reads frames until one of the wanted type arrives, skipping
// unrelated broadcasts such as user_count updates from other sessions.
func awaitFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	for i := 0; i < 20; i++ {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame while waiting for %q: %v", wantType, err)
		}
		if frame["type"] == wantType {
			return frame
		}
	}
	t.Fatalf("no %q frame in 20 reads", wantType)
	return nil
}

func join(t *testing.T, ctx context.Context, conn *websocket.Conn) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, map[string]string{"type": "join"}); err != nil {
		t.Fatalf("send join: %v", err)
	}
}

func TestHandshakeRequiresCookie(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})

	resp, err := stdhttp.Get(env.srv.URL + "/ws")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, stdhttp.StatusUnauthorized)
	}
}

func TestHandshakeRejectsDisallowedOrigin(t *testing.T) {
	env := newWSTestEnv(t, []string{"https://eventsy.example"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := auth.GenerateToken(env.jwt, "c@x.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	header := stdhttp.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.Dial(ctx, env.srv.URL+"/ws", &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("dial from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 response, got %+v", resp)
	}
}

func TestJoinFlowOverWebSocket(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "c@x.com")

	greeting := awaitFrame(t, ctx, conn, "connection_established")
	if greeting["clientId"] != "c@x.com" {
		t.Fatalf("clientId = %v, want c@x.com", greeting["clientId"])
	}

	join(t, ctx, conn)

	history := awaitFrame(t, ctx, conn, "chat_history")
	if msgs, ok := history["messages"].([]any); !ok || len(msgs) != 0 {
		t.Fatalf("expected empty history, got %v", history["messages"])
	}

	success := awaitFrame(t, ctx, conn, "join_success")
	if success["username"] != "Chloe" {
		t.Fatalf("username = %v, want Chloe", success["username"])
	}

	count := awaitFrame(t, ctx, conn, "user_count")
	if count["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", count["count"])
	}
}

func TestMessageFansOutToAdmin(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminConn := env.dial(t, ctx, "admin@eventsy.com")
	awaitFrame(t, ctx, adminConn, "connection_established")
	join(t, ctx, adminConn)
	awaitFrame(t, ctx, adminConn, "chats_info")
	awaitFrame(t, ctx, adminConn, "join_success")

	custConn := env.dial(t, ctx, "c@x.com")
	awaitFrame(t, ctx, custConn, "connection_established")
	join(t, ctx, custConn)
	awaitFrame(t, ctx, custConn, "join_success")

	if err := wsjson.Write(ctx, custConn, map[string]string{
		"type": "message",
		"text": "hello there",
	}); err != nil {
		t.Fatalf("send message: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"customer": custConn, "admin": adminConn} {
		frame := awaitFrame(t, ctx, conn, "message")
		if frame["username"] != "Chloe" || frame["text"] != "hello there" {
			t.Fatalf("%s received wrong frame: %v", name, frame)
		}
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "c@x.com")
	awaitFrame(t, ctx, conn, "connection_established")

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write malformed frame: %v", err)
	}
	frame := awaitFrame(t, ctx, conn, "error")
	if frame["message"] != "Invalid JSON format" {
		t.Fatalf("error message = %v", frame["message"])
	}

	// The connection survives the bad frame.
	if err := wsjson.Write(ctx, conn, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	awaitFrame(t, ctx, conn, "pong")
}

func TestUnknownFrameTypeReported(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "c@x.com")
	awaitFrame(t, ctx, conn, "connection_established")

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "bogus"}); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	frame := awaitFrame(t, ctx, conn, "error")
	if frame["message"] != "Unknown message type: bogus" {
		t.Fatalf("error message = %v", frame["message"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newWSTestEnv(t, []string{"*"})

	resp, err := stdhttp.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf [8]byte
	n, _ := resp.Body.Read(buf[:])
	if string(buf[:n]) != "ok" {
		t.Fatalf("body = %q, want ok", string(buf[:n]))
	}
}
