// Package mongo implements store.Store on MongoDB, matching the document
// layout the Eventsy storefront backend writes (users, chats, chatmessages).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xzytten/eventsy-chat-server/internal/store"
)

const (
	usersCollection         = "users"
	conversationsCollection = "chats"
	messagesCollection      = "chatmessages"

	connectTimeout = 10 * time.Second
)

type userDoc struct {
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

type conversationDoc struct {
	ID           string    `bson:"_id"`
	Participants []string  `bson:"participants"`
	CreatedAt    time.Time `bson:"created_at"`
}

type senderDoc struct {
	Email    string `bson:"email"`
	Username string `bson:"username"`
}

type messageDoc struct {
	ID            string    `bson:"_id"`
	ChatID        string    `bson:"chatId"`
	Sender        senderDoc `bson:"sender"`
	Text          string    `bson:"text"`
	ViewedByAdmin bool      `bson:"viewedByAdmin"`
	Timestamp     time.Time `bson:"timestamp"`
}

// MongoStore implements store.Store for MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and prepares the collections used by the relay.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(conversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create conversation index: %w", err)
	}

	_, err = s.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create message index: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==== UserDirectory implementation ====

// CreateUser inserts a directory entry.
func (s *MongoStore) CreateUser(ctx context.Context, user *store.User) error {
	doc := userDoc{
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return userFromDoc(doc), nil
}

// SearchUsers matches users by name or email substring, case-insensitively.
func (s *MongoStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": bson.M{"$regex": query, "$options": "i"}},
		bson.M{"name": bson.M{"$regex": query, "$options": "i"}},
	}}

	cur, err := s.db.Collection(usersCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*store.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, userFromDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func userFromDoc(doc userDoc) *store.User {
	return &store.User{
		Email:        doc.Email,
		Name:         doc.Name,
		PasswordHash: doc.PasswordHash,
		Role:         store.Role(doc.Role),
		CreatedAt:    doc.CreatedAt,
	}
}

// ==== ConversationStore implementation ====

// FindOrCreateConversation returns the participant's conversation, creating it if absent.
func (s *MongoStore) FindOrCreateConversation(ctx context.Context, participant string) (*store.Conversation, error) {
	coll := s.db.Collection(conversationsCollection)

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          uuid.NewString(),
			"participants": []string{participant},
			"created_at":   time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc conversationDoc
	err := coll.FindOneAndUpdate(ctx, bson.M{"participants": participant}, update, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	return conversationFromDoc(doc), nil
}

// GetConversation retrieves a conversation by id.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	var doc conversationDoc
	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return conversationFromDoc(doc), nil
}

// ListConversations returns conversations newest first, optionally restricted
// to the given participants.
func (s *MongoStore) ListConversations(ctx context.Context, participants []string) ([]*store.Conversation, error) {
	filter := bson.M{}
	if participants != nil {
		if len(participants) == 0 {
			return nil, nil
		}
		filter["participants"] = bson.M{"$in": participants}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.db.Collection(conversationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cur.Close(ctx)

	var convs []*store.Conversation
	for cur.Next(ctx) {
		var doc conversationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		convs = append(convs, conversationFromDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}

func conversationFromDoc(doc conversationDoc) *store.Conversation {
	conv := &store.Conversation{
		ID:        doc.ID,
		CreatedAt: doc.CreatedAt,
	}
	if len(doc.Participants) > 0 {
		conv.Participant = doc.Participants[0]
	}
	return conv
}

// AppendMessage persists a message at the end of a conversation.
func (s *MongoStore) AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	saved := *msg
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}

	doc := messageDoc{
		ID:     saved.ID,
		ChatID: saved.ConversationID,
		Sender: senderDoc{
			Email:    saved.SenderEmail,
			Username: saved.SenderName,
		},
		Text:          saved.Text,
		ViewedByAdmin: saved.ViewedByAdmin,
		Timestamp:     saved.CreatedAt,
	}
	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &saved, nil
}

// ListMessages returns a conversation's messages ordered oldest first.
func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"chatId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []*store.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, messageFromDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// LastMessage returns the newest message in a conversation.
func (s *MongoStore) LastMessage(ctx context.Context, conversationID string) (*store.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var doc messageDoc
	err := s.db.Collection(messagesCollection).FindOne(ctx, bson.M{"chatId": conversationID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find last message: %w", err)
	}

	return messageFromDoc(doc), nil
}

func messageFromDoc(doc messageDoc) *store.Message {
	return &store.Message{
		ID:             doc.ID,
		ConversationID: doc.ChatID,
		SenderEmail:    doc.Sender.Email,
		SenderName:     doc.Sender.Username,
		Text:           doc.Text,
		ViewedByAdmin:  doc.ViewedByAdmin,
		CreatedAt:      doc.Timestamp,
	}
}
