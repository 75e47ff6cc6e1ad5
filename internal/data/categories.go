package data

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CategoriesStore performs category DB operations.
type CategoriesStore struct {
	coll *mongo.Collection
}

// NewCategoriesStore returns a CategoriesStore using the provided collection.
func NewCategoriesStore(coll *mongo.Collection) *CategoriesStore {
	return &CategoriesStore{coll: coll}
}

// CreateCategory inserts a category. ErrDuplicate when the user already has
// one with the same name and type.
func (s *CategoriesStore) CreateCategory(ctx context.Context, cat *Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now().UTC()
	}
	res, err := s.coll.InsertOne(ctx, cat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrDuplicate, "category %s/%s", cat.Type, cat.Name)
		}
		return errors.Wrap(err, "insert category")
	}
	cat.ID = res.InsertedID.(bson.ObjectID)
	return nil
}

// GetCategory finds one of the user's categories by name and type.
func (s *CategoriesStore) GetCategory(ctx context.Context, userID, name string, typ TransactionType) (*Category, error) {
	var cat Category
	filter := bson.M{"user_id": userID, "name": strings.TrimSpace(name), "type": typ}
	if err := s.coll.FindOne(ctx, filter).Decode(&cat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "category %s/%s", typ, name)
		}
		return nil, errors.Wrap(err, "find category")
	}
	return &cat, nil
}

// ListCategories returns the user's categories sorted by name. An empty typ
// returns both kinds.
func (s *CategoriesStore) ListCategories(ctx context.Context, userID string, typ TransactionType) ([]*Category, error) {
	filter := bson.M{"user_id": userID}
	if typ != "" {
		filter["type"] = typ
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find categories")
	}
	var cats []*Category
	if err := cur.All(ctx, &cats); err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return cats, nil
}

// DeleteCategory removes a category. Transactions keep their copy of the
// name and icon.
func (s *CategoriesStore) DeleteCategory(ctx context.Context, userID, name string, typ TransactionType) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"user_id": userID, "name": strings.TrimSpace(name), "type": typ})
	if err != nil {
		return errors.Wrap(err, "delete category")
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "category %s/%s", typ, name)
	}
	return nil
}
