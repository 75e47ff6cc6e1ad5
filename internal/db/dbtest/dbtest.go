// Package dbtest provides MongoDB-backed fixtures for integration tests.
//
// Tests use MONGODB_URI when it is set. Otherwise a MongoDB container is
// started once per test binary through testcontainers; when Docker is not
// available the calling test is skipped.
package dbtest

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/db"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

const mongoImage = "mongo:7"

var (
	once     sync.Once
	shared   string
	startErr error
)

// URI returns a MongoDB connection string or skips the test.
func URI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		return uri
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		// left running for the rest of the binary; the reaper removes it
		ctr, err := mongodb.Run(ctx, mongoImage)
		if err != nil {
			startErr = err
			return
		}
		shared, startErr = ctr.ConnectionString(ctx)
	})
	if startErr != nil {
		t.Skipf("MONGODB_URI not set and mongo container unavailable: %v", startErr)
	}
	return shared
}

// Connect returns a client bound to a fresh database with indexes created.
// The database is dropped when the test finishes.
func Connect(t *testing.T) *db.Client {
	t.Helper()
	uri := URI(t)

	ctx := context.Background()
	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	c, err := db.New(ctx, uri, name)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Drop(context.Background())
		_ = c.Close(context.Background())
	})
	return c
}
