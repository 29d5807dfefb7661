package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xzytten/eventsy-chat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	email         TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'customer',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	participant TEXT NOT NULL UNIQUE,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	sender_email    TEXT NOT NULL,
	sender_name     TEXT NOT NULL,
	body            TEXT NOT NULL,
	viewed_by_admin BOOLEAN NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (conversation_id, created_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserDirectory implementation ====

// CreateUser inserts a directory entry.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, role)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, user.Email, user.Name, user.PasswordHash, string(user.Role)); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT email, name, password_hash, role, created_at
		FROM users
		WHERE email = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SearchUsers matches users by name or email substring, case-insensitively.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	stmt := `
		SELECT email, name, password_hash, role, created_at
		FROM users
		WHERE LOWER(email) LIKE '%' || LOWER(?) || '%'
		   OR LOWER(name)  LIKE '%' || LOWER(?) || '%'
		ORDER BY email
	`
	rows, err := s.db.QueryContext(ctx, stmt, query, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// ==== ConversationStore implementation ====

// FindOrCreateConversation returns the participant's conversation, creating it if absent.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, participant string) (*store.Conversation, error) {
	conv, err := s.getConversationBy(ctx, "participant", participant)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	created := &store.Conversation{
		ID:          uuid.NewString(),
		Participant: participant,
		CreatedAt:   time.Now().UTC(),
	}
	query := `
		INSERT INTO conversations (id, participant, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (participant) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, created.ID, created.Participant, created.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	// Re-read in case a concurrent writer won the insert.
	return s.getConversationBy(ctx, "participant", participant)
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	return s.getConversationBy(ctx, "id", id)
}

func (s *SQLiteStore) getConversationBy(ctx context.Context, column, value string) (*store.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, participant, created_at
		FROM conversations
		WHERE %s = ?
	`, column)
	var conv store.Conversation
	err := s.db.QueryRowContext(ctx, query, value).Scan(&conv.ID, &conv.Participant, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns conversations newest first, optionally restricted
// to the given participants.
func (s *SQLiteStore) ListConversations(ctx context.Context, participants []string) ([]*store.Conversation, error) {
	query := `
		SELECT id, participant, created_at
		FROM conversations
		ORDER BY created_at DESC
	`
	var args []any
	if participants != nil {
		if len(participants) == 0 {
			return nil, nil
		}
		placeholders := ""
		for i, p := range participants {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, p)
		}
		query = fmt.Sprintf(`
			SELECT id, participant, created_at
			FROM conversations
			WHERE participant IN (%s)
			ORDER BY created_at DESC
		`, placeholders)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*store.Conversation
	for rows.Next() {
		var conv store.Conversation
		if err := rows.Scan(&conv.ID, &conv.Participant, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}

// AppendMessage persists a message at the end of a conversation.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	saved := *msg
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_email, sender_name, body, viewed_by_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		saved.ID,
		saved.ConversationID,
		saved.SenderEmail,
		saved.SenderName,
		saved.Text,
		saved.ViewedByAdmin,
		saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &saved, nil
}

// ListMessages returns a conversation's messages ordered oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_email, sender_name, body, viewed_by_admin, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderEmail,
			&msg.SenderName,
			&msg.Text,
			&msg.ViewedByAdmin,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// LastMessage returns the newest message in a conversation.
func (s *SQLiteStore) LastMessage(ctx context.Context, conversationID string) (*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_email, sender_name, body, viewed_by_admin, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderEmail,
		&msg.SenderName,
		&msg.Text,
		&msg.ViewedByAdmin,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query last message: %w", err)
	}

	return &msg, nil
}
