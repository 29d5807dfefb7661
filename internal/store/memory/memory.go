// Package memory provides an in-memory store.Store used by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xzytten/eventsy-chat-server/internal/store"
)

// MemoryStore implements store.Store with mutex-guarded maps.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*store.User
	conversations map[string]*store.Conversation // by id
	byParticipant map[string]string              // participant -> conversation id
	messages      map[string][]*store.Message    // conversation id -> ordered messages
	now           func() time.Time
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*store.User),
		conversations: make(map[string]*store.Conversation),
		byParticipant: make(map[string]string),
		messages:      make(map[string][]*store.Message),
		now:           time.Now,
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// CreateUser inserts a directory entry.
func (s *MemoryStore) CreateUser(_ context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.Email] = &u
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := *user
	return &u, nil
}

// SearchUsers matches users by name or email substring, case-insensitively.
func (s *MemoryStore) SearchUsers(_ context.Context, query string) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	var users []*store.User
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Email), query) ||
			strings.Contains(strings.ToLower(user.Name), query) {
			u := *user
			users = append(users, &u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// FindOrCreateConversation returns the participant's conversation, creating it if absent.
func (s *MemoryStore) FindOrCreateConversation(_ context.Context, participant string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byParticipant[participant]; ok {
		conv := *s.conversations[id]
		return &conv, nil
	}

	conv := &store.Conversation{
		ID:          uuid.NewString(),
		Participant: participant,
		CreatedAt:   s.now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.byParticipant[participant] = conv.ID

	out := *conv
	return &out, nil
}

// GetConversation retrieves a conversation by id.
func (s *MemoryStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *conv
	return &out, nil
}

// ListConversations returns conversations newest first, optionally restricted
// to the given participants.
func (s *MemoryStore) ListConversations(_ context.Context, participants []string) ([]*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]struct{}
	if participants != nil {
		allowed = make(map[string]struct{}, len(participants))
		for _, p := range participants {
			allowed[p] = struct{}{}
		}
	}

	var convs []*store.Conversation
	for _, conv := range s.conversations {
		if allowed != nil {
			if _, ok := allowed[conv.Participant]; !ok {
				continue
			}
		}
		out := *conv
		convs = append(convs, &out)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	return convs, nil
}

// AppendMessage persists a message at the end of a conversation.
func (s *MemoryStore) AppendMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return nil, store.ErrNotFound
	}

	saved := *msg
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = s.now().UTC()
	}
	s.messages[saved.ConversationID] = append(s.messages[saved.ConversationID], &saved)

	out := saved
	return &out, nil
}

// ListMessages returns a conversation's messages ordered oldest first.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[conversationID]
	msgs := make([]*store.Message, 0, len(src))
	for _, msg := range src {
		out := *msg
		msgs = append(msgs, &out)
	}
	return msgs, nil
}

// LastMessage returns the newest message in a conversation.
func (s *MemoryStore) LastMessage(_ context.Context, conversationID string) (*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[conversationID]
	if len(src) == 0 {
		return nil, store.ErrNotFound
	}
	out := *src[len(src)-1]
	return &out, nil
}
