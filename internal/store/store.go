package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role identifies what a user is allowed to do in the chat relay.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is an entry in the identity directory. Accounts are created by the
// storefront (or the seed-user command); the relay only reads them.
type User struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Conversation is a support thread. Exactly one exists per customer email;
// admins attach to conversations but are never participants.
type Conversation struct {
	ID          string
	Participant string // customer email
	CreatedAt   time.Time
}

// Message is a persisted chat message. Immutable once created.
type Message struct {
	ID             string
	ConversationID string
	SenderEmail    string
	SenderName     string
	Text           string
	// ViewedByAdmin is reserved for a future read-receipt feature.
	// Nothing reads it yet.
	ViewedByAdmin bool
	CreatedAt     time.Time
}

// ConversationSummary is the admin-directory projection of a conversation.
type ConversationSummary struct {
	Conversation    Conversation
	ParticipantName string
	LastMessageText string
}

// UserDirectory resolves identities during the handshake and for the
// admin directory filter.
type UserDirectory interface {
	// FindUserByEmail returns the user with the given email, or ErrNotFound.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// SearchUsers matches users whose name or email contains the query,
	// case-insensitively.
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// CreateUser inserts a directory entry. Used by ops tooling, not the relay.
	CreateUser(ctx context.Context, user *User) error
}

// ConversationStore handles conversation and message persistence.
type ConversationStore interface {
	// FindOrCreateConversation returns the participant's conversation,
	// creating it if none exists. Idempotent per participant.
	FindOrCreateConversation(ctx context.Context, participant string) (*Conversation, error)

	// GetConversation returns the conversation with the given id, or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns all conversations ordered by recency.
	// When participants is non-nil, only conversations whose participant is
	// in the set are returned.
	ListConversations(ctx context.Context, participants []string) ([]*Conversation, error)

	// AppendMessage persists a message at the end of a conversation.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)

	// ListMessages returns a conversation's messages ordered oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// LastMessage returns the newest message in a conversation, or
	// ErrNotFound for an empty one.
	LastMessage(ctx context.Context, conversationID string) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserDirectory
	ConversationStore

	// Close closes the underlying database connection.
	Close() error
}
