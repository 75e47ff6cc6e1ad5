package data

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore performs chat DB operations. Messages live in their own
// collection (see MessagesStore) and reference the chat by id.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the provided collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// newestFirst orders by creation time, ties broken by id so the order is total.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// CreateChat inserts a chat. The caller mints the id so a new chat can be
// written together with its first messages; MessageCount must already
// account for them.
func (s *ChatsStore) CreateChat(ctx context.Context, chat *Chat) error {
	if chat.ID.IsZero() {
		chat.ID = bson.NewObjectID()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, chat); err != nil {
		return errors.Wrap(err, "insert chat")
	}
	return nil
}

// GetChat returns the chat only when it belongs to userID. A chat owned by
// someone else is reported exactly like a missing one.
func (s *ChatsStore) GetChat(ctx context.Context, userID string, id bson.ObjectID) (*Chat, error) {
	var chat Chat
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "chat %s", id.Hex())
		}
		return nil, errors.Wrap(err, "find chat")
	}
	return &chat, nil
}

// ReserveSeq atomically claims n message positions in the chat and returns
// the first one. Concurrent turns on one chat get disjoint ranges.
func (s *ChatsStore) ReserveSeq(ctx context.Context, userID string, id bson.ObjectID, n int64) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var chat Chat
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$inc": bson.M{"message_count": n}},
		opts,
	).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, errors.Wrapf(ErrNotFound, "chat %s", id.Hex())
		}
		return 0, errors.Wrap(err, "reserve message seq")
	}
	return chat.MessageCount - n + 1, nil
}

// ListChats returns the user's chats newest first. limit <= 0 means all.
func (s *ChatsStore) ListChats(ctx context.Context, userID string, limit int64) ([]*Chat, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

// ListChatsSince returns the user's chats created at or after since, newest first.
func (s *ChatsStore) ListChatsSince(ctx context.Context, userID string, since time.Time) ([]*Chat, error) {
	filter := bson.M{"user_id": userID, "created_at": bson.M{"$gte": since}}
	return s.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (s *ChatsStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Chat, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find chats")
	}
	var chats []*Chat
	if err := cur.All(ctx, &chats); err != nil {
		return nil, errors.Wrap(err, "decode chats")
	}
	return chats, nil
}

// DeleteChats removes the given chats owned by userID and reports how many
// were deleted.
func (s *ChatsStore) DeleteChats(ctx context.Context, userID string, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": userID})
	if err != nil {
		return 0, errors.Wrap(err, "delete chats")
	}
	return res.DeletedCount, nil
}
