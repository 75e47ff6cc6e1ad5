package organizer

import (
	"context"
	"testing"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type memBoards struct {
	boards []*data.Board
	tasks  []*data.Task
}

func (m *memBoards) UpsertBoard(_ context.Context, userID string, day time.Time) (*data.Board, error) {
	for _, b := range m.boards {
		if b.UserID == userID && b.Date.Equal(day) {
			return b, nil
		}
	}
	b := &data.Board{ID: bson.NewObjectID(), UserID: userID, Date: day}
	m.boards = append(m.boards, b)
	return b, nil
}

func (m *memBoards) GetBoard(_ context.Context, userID string, id bson.ObjectID) (*data.Board, error) {
	for _, b := range m.boards {
		if b.ID == id && b.UserID == userID {
			return b, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memBoards) ListBoards(_ context.Context, userID string) ([]*data.BoardWithTasks, error) {
	var out []*data.BoardWithTasks
	for _, b := range m.boards {
		if b.UserID != userID {
			continue
		}
		bt := &data.BoardWithTasks{Board: b, Tasks: []*data.Task{}}
		for _, t := range m.tasks {
			if t.BoardID == b.ID {
				bt.Tasks = append(bt.Tasks, t)
			}
		}
		out = append(out, bt)
	}
	return out, nil
}

func (m *memBoards) CreateTask(_ context.Context, task *data.Task) error {
	task.ID = bson.NewObjectID()
	m.tasks = append(m.tasks, task)
	return nil
}

func TestBoardIsPerDay(t *testing.T) {
	store := &memBoards{}
	s := NewService(store)
	ctx := context.Background()

	a, err := s.Board(ctx, "alice", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), a.Date)

	b, err := s.Board(ctx, "alice", "2024-06-10T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "same UTC day reuses the board")

	c, err := s.Board(ctx, "bob", "2024-06-10")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)

	for _, bad := range []string{"", "tomorrow", "10/06/2024"} {
		_, err := s.Board(ctx, "alice", bad)
		assert.True(t, errors.Is(err, ErrInvalidInput), "date %q", bad)
	}
}

func TestAddTask(t *testing.T) {
	store := &memBoards{}
	s := NewService(store)
	ctx := context.Background()

	board, err := s.Board(ctx, "alice", "2024-06-10")
	require.NoError(t, err)

	task, err := s.AddTask(ctx, "alice", board.ID.Hex(), " pay rent ", "")
	require.NoError(t, err)
	assert.Equal(t, "pay rent", task.Text)
	assert.Equal(t, board.ID, task.BoardID)

	_, err = s.AddTask(ctx, "alice", board.ID.Hex(), " ", "desc")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = s.AddTask(ctx, "alice", "xyz", "text", "")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = s.AddTask(ctx, "bob", board.ID.Hex(), "steal", "")
	assert.True(t, errors.Is(err, ErrBoardNotFound))

	boards, err := s.Boards(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Len(t, boards[0].Tasks, 1)
}
