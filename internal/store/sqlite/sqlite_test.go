package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindOrCreateConversationIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.FindOrCreateConversation(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("first find-or-create: %v", err)
	}
	second, err := s.FindOrCreateConversation(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("second find-or-create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same conversation, got %s and %s", first.ID, second.ID)
	}

	convs, err := s.ListConversations(ctx, nil)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected one conversation, got %d", len(convs))
	}
}

func TestMessagesRoundTripInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("find-or-create: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	texts := []string{"one", "two", "three"}
	for i, text := range texts {
		_, err := s.AppendMessage(ctx, &store.Message{
			ConversationID: conv.ID,
			SenderEmail:    "c@x.com",
			SenderName:     "Chloe",
			Text:           text,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(msgs))
	}
	for i, want := range texts {
		msg := msgs[i]
		if msg.Text != want || msg.SenderEmail != "c@x.com" || msg.SenderName != "Chloe" {
			t.Fatalf("unexpected message %d: %+v", i, msg)
		}
	}

	last, err := s.LastMessage(ctx, conv.ID)
	if err != nil {
		t.Fatalf("last message: %v", err)
	}
	if last.Text != "three" {
		t.Fatalf("expected last message 'three', got %q", last.Text)
	}
}

func TestLastMessageEmptyConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.FindOrCreateConversation(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("find-or-create: %v", err)
	}

	_, err = s.LastMessage(ctx, conv.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetConversation(context.Background(), "missing-id")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserDirectoryLookupAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users := []*store.User{
		{Email: "c@x.com", Name: "Chloe", Role: store.RoleCustomer},
		{Email: "other@y.com", Name: "Otto", Role: store.RoleCustomer},
		{Email: "admin@eventsy.com", Name: "Support", Role: store.RoleAdmin},
	}
	for _, u := range users {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.Email, err)
		}
	}

	user, err := s.FindUserByEmail(ctx, "c@x.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.Name != "Chloe" || user.Role != store.RoleCustomer {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := s.FindUserByEmail(ctx, "nobody@z.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tests := []struct {
		query    string
		expected []string
	}{
		{"c@x", []string{"c@x.com"}},
		{"CHLOE", []string{"c@x.com"}},
		{"o", []string{"admin@eventsy.com", "c@x.com", "other@y.com"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		matched, err := s.SearchUsers(ctx, tt.query)
		if err != nil {
			t.Fatalf("search %q: %v", tt.query, err)
		}
		if len(matched) != len(tt.expected) {
			t.Fatalf("search %q: expected %d users, got %d", tt.query, len(tt.expected), len(matched))
		}
		for i, want := range tt.expected {
			if matched[i].Email != want {
				t.Fatalf("search %q: expected %s at %d, got %s", tt.query, want, i, matched[i].Email)
			}
		}
	}
}

func TestListConversationsFilteredByParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"c@x.com", "other@y.com"} {
		if _, err := s.FindOrCreateConversation(ctx, email); err != nil {
			t.Fatalf("create conversation for %s: %v", email, err)
		}
	}

	filtered, err := s.ListConversations(ctx, []string{"c@x.com"})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Participant != "c@x.com" {
		t.Fatalf("unexpected filtered conversations: %+v", filtered)
	}

	none, err := s.ListConversations(ctx, []string{})
	if err != nil {
		t.Fatalf("empty filter list: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no conversations for empty participant set, got %d", len(none))
	}
}
