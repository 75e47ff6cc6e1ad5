package data

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCurrency is assigned to users who never picked one.
const DefaultCurrency = "USD"

// SettingsStore performs user settings DB operations.
type SettingsStore struct {
	coll *mongo.Collection
}

// NewSettingsStore returns a SettingsStore using the provided collection.
func NewSettingsStore(coll *mongo.Collection) *SettingsStore {
	return &SettingsStore{coll: coll}
}

// GetSettings returns the user's settings, creating the default document on
// first access.
func (s *SettingsStore) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	// $setOnInsert keeps an existing currency untouched
	update := bson.M{"$setOnInsert": bson.M{
		"currency":   DefaultCurrency,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out Settings
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "get settings")
	}
	return &out, nil
}

// UpdateCurrency stores the user's currency.
func (s *SettingsStore) UpdateCurrency(ctx context.Context, userID, currency string) (*Settings, error) {
	update := bson.M{"$set": bson.M{
		"currency":   normalize.Currency(currency),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out Settings
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "update settings")
	}
	return &out, nil
}
