package relay

import (
	"testing"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

func TestRegistryAddSupersedes(t *testing.T) {
	r := NewRegistry()

	first := NewSession("c@x.com", "Chloe", store.RoleCustomer)
	if replaced := r.Add(first); replaced != nil {
		t.Fatalf("expected no replacement, got %+v", replaced)
	}

	second := NewSession("c@x.com", "Chloe", store.RoleCustomer)
	if replaced := r.Add(second); replaced != first {
		t.Fatalf("expected first session to be replaced")
	}
	if r.Get("c@x.com") != second {
		t.Fatal("expected second session to be registered")
	}
	if r.Len() != 1 {
		t.Fatalf("expected one session, got %d", r.Len())
	}
}

func TestRegistryRemoveOnlyCurrentSession(t *testing.T) {
	r := NewRegistry()

	first := NewSession("c@x.com", "Chloe", store.RoleCustomer)
	r.Add(first)
	second := NewSession("c@x.com", "Chloe", store.RoleCustomer)
	r.Add(second)

	// The superseded session must not evict its replacement.
	if r.Remove(first) {
		t.Fatal("removing a superseded session should be a no-op")
	}
	if r.Get("c@x.com") != second {
		t.Fatal("second session should still be registered")
	}

	if !r.Remove(second) {
		t.Fatal("expected removal of current session")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryOnlineCount(t *testing.T) {
	r := NewRegistry()

	joined := NewSession("c@x.com", "Chloe", store.RoleCustomer)
	joined.State = StateJoined
	r.Add(joined)

	connected := NewSession("other@y.com", "Otto", store.RoleCustomer)
	r.Add(connected)

	nameless := NewSession("ghost@y.com", "", store.RoleCustomer)
	nameless.State = StateJoined
	r.Add(nameless)

	if got := r.OnlineCount(); got != 1 {
		t.Fatalf("expected online count 1, got %d", got)
	}
	if got := r.Len(); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}
}
