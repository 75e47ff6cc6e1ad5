package data

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// BoardsStore performs kanban board and task DB operations.
type BoardsStore struct {
	boards *mongo.Collection
	tasks  *mongo.Collection
}

// NewBoardsStore returns a BoardsStore over the boards and tasks collections.
func NewBoardsStore(boards, tasks *mongo.Collection) *BoardsStore {
	return &BoardsStore{boards: boards, tasks: tasks}
}

// UpsertBoard returns the user's board for day, creating it if needed.
// day must already be truncated to UTC midnight; the unique (user_id, date)
// index makes concurrent calls converge on one board.
func (s *BoardsStore) UpsertBoard(ctx context.Context, userID string, day time.Time) (*Board, error) {
	filter := bson.M{"user_id": userID, "date": day}
	update := bson.M{"$setOnInsert": bson.M{"created_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var b Board
	err := s.boards.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// lost the upsert race; the winner's document is there now
		err = s.boards.FindOne(ctx, filter).Decode(&b)
	}
	if err != nil {
		return nil, errors.Wrap(err, "upsert board")
	}
	return &b, nil
}

// GetBoard returns the board only when it belongs to userID.
func (s *BoardsStore) GetBoard(ctx context.Context, userID string, id bson.ObjectID) (*Board, error) {
	var b Board
	if err := s.boards.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "board %s", id.Hex())
		}
		return nil, errors.Wrap(err, "find board")
	}
	return &b, nil
}

// ListBoards returns the user's boards by date with their tasks.
func (s *BoardsStore) ListBoards(ctx context.Context, userID string) ([]*BoardWithTasks, error) {
	cur, err := s.boards.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find boards")
	}
	var boards []*Board
	if err := cur.All(ctx, &boards); err != nil {
		return nil, errors.Wrap(err, "decode boards")
	}
	if len(boards) == 0 {
		return []*BoardWithTasks{}, nil
	}

	ids := make([]bson.ObjectID, len(boards))
	for i, b := range boards {
		ids[i] = b.ID
	}
	opts := options.Find().SetSort(bson.D{{Key: "board_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	tcur, err := s.tasks.Find(ctx, bson.M{"board_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find tasks")
	}
	var tasks []*Task
	if err := tcur.All(ctx, &tasks); err != nil {
		return nil, errors.Wrap(err, "decode tasks")
	}
	byBoard := make(map[bson.ObjectID][]*Task, len(boards))
	for _, t := range tasks {
		byBoard[t.BoardID] = append(byBoard[t.BoardID], t)
	}

	out := make([]*BoardWithTasks, len(boards))
	for i, b := range boards {
		ts := byBoard[b.ID]
		if ts == nil {
			ts = []*Task{}
		}
		out[i] = &BoardWithTasks{Board: b, Tasks: ts}
	}
	return out, nil
}

// CreateTask inserts a task. The caller checks board ownership first.
func (s *BoardsStore) CreateTask(ctx context.Context, task *Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	res, err := s.tasks.InsertOne(ctx, task)
	if err != nil {
		return errors.Wrap(err, "insert task")
	}
	task.ID = res.InsertedID.(bson.ObjectID)
	return nil
}
