package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/xzytten/eventsy-chat-server/internal/auth"
	"github.com/xzytten/eventsy-chat-server/internal/proto"
	"github.com/xzytten/eventsy-chat-server/internal/relay"
)

const (
	handshakeTimeout = 5 * time.Second
	probeTimeout     = 10 * time.Second
)

// WSHandler authenticates upgrade requests and bridges connections to the hub.
type WSHandler struct {
	hub  *relay.Hub
	gate *auth.Gate
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *relay.Hub, gate *auth.Gate, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, gate: gate, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	authCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	identity, err := h.gate.Authorize(authCtx, r)
	cancel()
	if err != nil {
		status := stdhttp.StatusUnauthorized
		if errors.Is(err, auth.ErrOriginNotAllowed) {
			status = stdhttp.StatusForbidden
		}
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		stdhttp.Error(w, handshakeReason(err), status)
		return
	}

	// The storefront passes ?email= on the URL; the token is authoritative.
	if q := r.URL.Query().Get("email"); q != "" && q != identity.Email {
		h.log.Warn().
			Str("query_email", q).
			Str("token_email", identity.Email).
			Msg("query email differs from token identity, using token")
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The gate already enforced the origin allow-list.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	sess := relay.NewSession(identity.Email, identity.Name, identity.Role)
	h.hub.Register(sess)
	defer h.hub.Unregister(sess)

	ctx, cancel = context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errSessionClosed) {
		status = websocket.StatusGoingAway
		reason = "server closed session"
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", sess.Email).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// errSessionClosed signals that the hub closed the session (supersession,
// liveness timeout or shutdown) rather than the peer.
var errSessionClosed = errors.New("session closed by hub")

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *relay.Session) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		// Frame-level failures are reported to the sender only; the
		// connection stays open.
		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", sess.Email).Msg("malformed frame")
			if writeErr := h.writeError(ctx, conn, "Invalid JSON format"); writeErr != nil {
				return writeErr
			}
			continue
		}

		cmd, decodeErr := decodeInbound(inbound)
		if decodeErr != nil {
			if writeErr := h.writeError(ctx, conn, decodeErr.Message); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.hub.Dispatch(sess, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *relay.Session) error {
	for {
		select {
		case event, ok := <-sess.Events:
			if !ok {
				return errSessionClosed
			}
			if event.Kind == relay.EventProbe {
				h.probe(ctx, conn, sess)
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", sess.Email).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// probe sends a protocol-level ping without blocking the write loop; a pong
// response flips the session back to alive.
func (h *WSHandler) probe(ctx context.Context, conn *websocket.Conn, sess *relay.Session) {
	go func() {
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := conn.Ping(pingCtx); err == nil {
			h.hub.Dispatch(sess, &relay.Command{Kind: relay.CommandHeartbeatAck})
		}
	}()
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, message string) error {
	return wsjson.Write(ctx, conn, proto.Error{
		Type:      proto.OutboundTypeError,
		Message:   message,
		Timestamp: proto.FormatTime(time.Now()),
	})
}

func handshakeReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrOriginNotAllowed):
		return "origin not allowed"
	case errors.Is(err, auth.ErrNoAuthCookie):
		return "no auth cookie"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	case errors.Is(err, auth.ErrUserNotFound):
		return "user not found"
	default:
		return "unauthorized"
	}
}
