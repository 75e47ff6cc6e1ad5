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

// MessagesStore performs message DB operations.
type MessagesStore struct {
	// coll is the "messages" collection; (chat_id, seq) is unique
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the provided collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// AppendMessages inserts msgs in order. Seq must already be assigned.
func (s *MessagesStore) AppendMessages(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(msgs))
	for _, m := range msgs {
		if m.ID.IsZero() {
			m.ID = bson.NewObjectID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.Role = normalize.Role(m.Role)
		docs = append(docs, m)
	}
	// ordered insert stops at the first failure so no gap opens mid-turn;
	// callers remove what did land
	res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return errors.Wrap(err, "insert messages")
	}
	if len(res.InsertedIDs) != len(docs) {
		return errors.Errorf("inserted %d of %d messages", len(res.InsertedIDs), len(docs))
	}
	return nil
}

// ListMessages returns a chat's messages in conversation order.
func (s *MessagesStore) ListMessages(ctx context.Context, chatID bson.ObjectID) ([]*Message, error) {
	byChat, err := s.ListMessagesForChats(ctx, []bson.ObjectID{chatID})
	if err != nil {
		return nil, err
	}
	return byChat[chatID], nil
}

// ListMessagesForChats loads the messages of several chats in one query,
// grouped by chat and ordered by seq.
func (s *MessagesStore) ListMessagesForChats(ctx context.Context, chatIDs []bson.ObjectID) (map[bson.ObjectID][]*Message, error) {
	out := make(map[bson.ObjectID][]*Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "chat_id", Value: 1}, {Key: "seq", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"chat_id": bson.M{"$in": chatIDs}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find messages")
	}
	var msgs []*Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode messages")
	}
	for _, m := range msgs {
		// rows written before the rename still say "bot"
		m.Role = normalize.Role(m.Role)
		out[m.ChatID] = append(out[m.ChatID], m)
	}
	return out, nil
}

// DeleteMessagesForChats removes every message of the given chats.
func (s *MessagesStore) DeleteMessagesForChats(ctx context.Context, chatIDs []bson.ObjectID) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"chat_id": bson.M{"$in": chatIDs}})
	if err != nil {
		return 0, errors.Wrap(err, "delete messages")
	}
	return res.DeletedCount, nil
}

// DeleteMessages removes messages by id.
func (s *MessagesStore) DeleteMessages(ctx context.Context, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, errors.Wrap(err, "delete messages by id")
	}
	return res.DeletedCount, nil
}
