package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type boardRequest struct {
	Date string `json:"date" binding:"required"`
}

type taskRequest struct {
	Text        string `json:"text" binding:"required"`
	Description string `json:"description"`
	KanbanID    string `json:"kanbanId" binding:"required"`
}

// postBoard creates or fetches the caller's board for a day.
func (s *Server) postBoard(c *gin.Context) {
	var req boardRequest
	if !bindJSON(c, &req) {
		return
	}
	board, err := s.organizer.Board(c.Request.Context(), callerID(c), req.Date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBoardView(board, nil))
}

// listBoards returns the caller's boards with their tasks.
func (s *Server) listBoards(c *gin.Context) {
	boards, err := s.organizer.Boards(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]boardView, 0, len(boards))
	for _, b := range boards {
		out = append(out, newBoardView(b.Board, b.Tasks))
	}
	c.JSON(http.StatusOK, out)
}

// postTask adds a task to one of the caller's boards.
func (s *Server) postTask(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.organizer.AddTask(c.Request.Context(), callerID(c), req.KanbanID, req.Text, req.Description)
	if err != nil {
		writeError(c, err, zap.String("board_id", req.KanbanID))
		return
	}
	c.JSON(http.StatusCreated, newTaskView(task))
}
