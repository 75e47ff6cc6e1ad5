package main

import (
	"fmt"
	"net/http"

	"github.com/PaulBabatuyi/finance-organizer/internal/chat"
	"github.com/PaulBabatuyi/finance-organizer/internal/gateway"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
	ChatID  string `json:"chatId"`
}

type chatResponse struct {
	Choices []gateway.Choice `json:"choices"`
	ChatID  string           `json:"chatId"`
}

// postChat runs one assistant turn.
func (s *Server) postChat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.chat.Turn(c.Request.Context(), callerID(c), req.Message, req.ChatID)
	if err != nil {
		writeError(c, err, zap.String("chat_id", req.ChatID))
		return
	}
	c.JSON(http.StatusOK, chatResponse{Choices: res.Choices, ChatID: res.ChatID})
}

// listChats returns the caller's most recent chats with messages.
func (s *Server) listChats(c *gin.Context) {
	chats, err := s.chat.Recent(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatViews(chats))
}

// sweepChats enforces chat retention for the caller.
func (s *Server) sweepChats(c *gin.Context) {
	n, err := s.chat.Sweep(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("Deleted %d chat(s); the %d most recent are kept.", n, chat.MaxRetainedChats))
}

// chatHistory returns the caller's chats from the last week.
func (s *Server) chatHistory(c *gin.Context) {
	chats, err := s.chat.History(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatViews(chats))
}
