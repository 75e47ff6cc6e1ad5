// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "finance_db"

// Collection names.
const (
	UsersCollectionName        = "users"
	SettingsCollectionName     = "settings"
	CategoriesCollectionName   = "categories"
	TransactionsCollectionName = "transactions"
	MonthHistoryCollectionName = "month_history"
	YearHistoryCollectionName  = "year_history"
	ChatsCollectionName        = "chats"
	MessagesCollectionName     = "messages"
	BoardsCollectionName       = "boards"
	TasksCollectionName        = "tasks"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; every collection hangs off it
	db *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second) // fail fast if MongoDB is unreachable

	// Connect only builds the client; Ping below is the real connectivity check
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Collection returns a collection by name.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection { return c.Collection(UsersCollectionName) }

// SettingsCollection returns the per-user settings collection.
func (c *Client) SettingsCollection() *mongo.Collection {
	return c.Collection(SettingsCollectionName)
}

// CategoriesCollection returns the categories collection.
func (c *Client) CategoriesCollection() *mongo.Collection {
	return c.Collection(CategoriesCollectionName)
}

// TransactionsCollection returns the transactions collection.
func (c *Client) TransactionsCollection() *mongo.Collection {
	return c.Collection(TransactionsCollectionName)
}

// MonthHistoryCollection returns the per-day aggregate collection.
func (c *Client) MonthHistoryCollection() *mongo.Collection {
	return c.Collection(MonthHistoryCollectionName)
}

// YearHistoryCollection returns the per-month aggregate collection.
func (c *Client) YearHistoryCollection() *mongo.Collection {
	return c.Collection(YearHistoryCollectionName)
}

// ChatsCollection returns the chats collection.
func (c *Client) ChatsCollection() *mongo.Collection { return c.Collection(ChatsCollectionName) }

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.Collection(MessagesCollectionName)
}

// BoardsCollection returns the kanban boards collection.
func (c *Client) BoardsCollection() *mongo.Collection { return c.Collection(BoardsCollectionName) }

// TasksCollection returns the kanban tasks collection.
func (c *Client) TasksCollection() *mongo.Collection { return c.Collection(TasksCollectionName) }

// Drop removes the whole database. Only tests call it.
func (c *Client) Drop(ctx context.Context) error {
	return c.db.Drop(ctx)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes every store relies on. Unique indexes
// back the duplicate checks (email, category name, history buckets, one
// board per day) so they hold under concurrent writers.
func (c *Client) CreateIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	indexes := map[string][]mongo.IndexModel{
		UsersCollectionName: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		SettingsCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		},
		CategoriesCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}, {Key: "type", Value: 1}}, Options: unique},
		},
		TransactionsCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		MonthHistoryCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}, {Key: "day", Value: 1}}, Options: unique},
		},
		YearHistoryCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}}, Options: unique},
		},
		ChatsCollectionName: {
			// newest-first listing and retention sweep
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		MessagesCollectionName: {
			// conversation order within a chat
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "seq", Value: 1}}, Options: unique},
		},
		BoardsCollectionName: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}, Options: unique},
		},
		TasksCollectionName: {
			{Keys: bson.D{{Key: "board_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := c.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
