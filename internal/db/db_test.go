package db_test

import (
	"context"
	"testing"

	"github.com/PaulBabatuyi/finance-organizer/internal/db"
	"github.com/PaulBabatuyi/finance-organizer/internal/db/dbtest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// These tests are integration tests and require MongoDB (MONGODB_URI or Docker).

func TestNewAndCreateIndexes(t *testing.T) {
	c := dbtest.Connect(t)
	ctx := context.Background()

	// CreateIndexes is idempotent
	require.NoError(t, c.CreateIndexes(ctx))
	require.NoError(t, c.Ping(ctx))

	// unique email index is enforced
	_, err := c.UsersCollection().InsertOne(ctx, bson.M{"email": "dup@example.com"})
	require.NoError(t, err)
	_, err = c.UsersCollection().InsertOne(ctx, bson.M{"email": "dup@example.com"})
	require.True(t, mongo.IsDuplicateKeyError(err), "expected duplicate key error, got %v", err)
}

func TestNewFailsOnUnreachableServer(t *testing.T) {
	_, err := db.New(context.Background(), "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "")
	require.Error(t, err)
}
