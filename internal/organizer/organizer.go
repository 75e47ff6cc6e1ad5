// Package organizer implements the calendar task organizer: one kanban
// board per user and day, each holding tasks.
package organizer

import (
	"context"
	"strings"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrInvalidInput is returned for missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBoardNotFound is returned when a board is unknown or not the caller's.
	ErrBoardNotFound = errors.New("board not found")
)

// BoardStore is the persistence used by Service.
type BoardStore interface {
	UpsertBoard(ctx context.Context, userID string, day time.Time) (*data.Board, error)
	GetBoard(ctx context.Context, userID string, id bson.ObjectID) (*data.Board, error)
	ListBoards(ctx context.Context, userID string) ([]*data.BoardWithTasks, error)
	CreateTask(ctx context.Context, task *data.Task) error
}

// Service runs kanban operations for a caller.
type Service struct {
	boards BoardStore
}

// NewService returns a Service.
func NewService(boards BoardStore) *Service {
	return &Service{boards: boards}
}

// Board returns the caller's board for the day of date, creating it when
// missing. date is YYYY-MM-DD or RFC 3339; the UTC calendar day is used.
func (s *Service) Board(ctx context.Context, userID, date string) (*data.Board, error) {
	if strings.TrimSpace(date) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "date is required")
	}
	t, err := normalize.Date(date)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return s.boards.UpsertBoard(ctx, userID, normalize.Day(t))
}

// Boards lists the caller's boards by day, each with its tasks.
func (s *Service) Boards(ctx context.Context, userID string) ([]*data.BoardWithTasks, error) {
	return s.boards.ListBoards(ctx, userID)
}

// AddTask adds a task to one of the caller's boards.
func (s *Service) AddTask(ctx context.Context, userID, boardID, text, description string) (*data.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Wrap(ErrInvalidInput, "text is required")
	}
	id, err := bson.ObjectIDFromHex(strings.TrimSpace(boardID))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid kanbanId %q", boardID)
	}
	board, err := s.boards.GetBoard(ctx, userID, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, errors.Wrapf(ErrBoardNotFound, "board %s", boardID)
		}
		return nil, err
	}

	task := &data.Task{
		BoardID:     board.ID,
		UserID:      userID,
		Text:        text,
		Description: strings.TrimSpace(description),
	}
	if err := s.boards.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}
