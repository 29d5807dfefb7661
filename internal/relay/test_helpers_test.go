package relay

import (
	"testing"
	"time"

	"github.com/xzytten/eventsy-chat-server/internal/config"
	"github.com/xzytten/eventsy-chat-server/internal/log"
	"github.com/xzytten/eventsy-chat-server/internal/store"
	"github.com/xzytten/eventsy-chat-server/internal/store/memory"
)

func testRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		MaxMessageLength:  1000,
		MaxUsernameLength: 20,
		HeartbeatInterval: time.Minute,
		StatsInterval:     time.Hour,
		AllowedOrigins:    []string{"*"},
	}
}

func newTestHub(t *testing.T, st store.Store) *Hub {
	t.Helper()
	if st == nil {
		st = memory.New()
	}
	return NewHub(NewRegistry(), st, st, testRelayConfig(), log.Nop())
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
