// Package data provides the MongoDB models and one store per collection.
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

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is the "users" collection; email carries a unique index
	// Set via NewUsersStore() and used in all methods below
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll} // Store reference to MongoDB collection
}

// CreateUser inserts a new user with an already hashed password.
// Returns ErrDuplicate when the email is taken.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Email:     normalize.Email(email), // lookups always use the normalized form
		Password:  hashedPassword, // Already hashed by auth.HashPassword()
		CreatedAt: now,
		UpdatedAt: now, // Initially same as CreatedAt
	}

	// InsertOne adds the document; the result carries the generated _id
	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique index on email turns a concurrent double registration into this
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(ErrDuplicate, "user %s", user.Email)
		}
		// Other database errors (connection, validation, etc)
		return nil, errors.Wrap(err, "insert user")
	}

	// MongoDB generates the _id; it becomes the JWT subject via auth.GenerateToken()
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email. The login handler compares the
// returned Password hash with auth.CheckPassword().
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return u.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetUserByID finds a user by ObjectID. The auth middleware uses it to turn
// away tokens of users that were deleted after the token was issued.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *UsersStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	// Initialize empty User struct to hold query result
	var user User
	if err := u.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		// No document matched (never registered or deleted)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrap(ErrNotFound, "user")
		}
		// Database errors
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

// UserExists checks if a user exists by email. Register calls it before
// hashing the password.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	// CountDocuments with a limit is cheaper than decoding a full document
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "count users")
	}
	// At most one document can match; the email index is unique
	return count > 0, nil
}
