package main

import (
	"context"
	"net/http"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/auth"
	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// register hashes the password, stores the user and returns a token.
func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	// cheap check before paying for bcrypt; the unique index still decides races
	exists, err := s.users.UserExists(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	if exists {
		writeError(c, errors.Wrapf(data.ErrDuplicate, "user %s", req.Email))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, errors.Wrap(err, "hash password"))
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), req.Email, hashed)
	if err != nil {
		writeError(c, err)
		return
	}

	s.issueToken(c, http.StatusCreated, user)
}

// login checks credentials and returns a token. Unknown users and wrong
// passwords get the same answer.
func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := s.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			err = errInvalidCredentials
		}
		writeError(c, err)
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		writeError(c, errInvalidCredentials)
		return
	}

	s.issueToken(c, http.StatusOK, user)
}

func (s *Server) issueToken(c *gin.Context, code int, user *data.User) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		writeError(c, errors.Wrap(err, "generate token"))
		return
	}
	c.JSON(code, tokenResponse{Token: token, UserID: user.ID.Hex(), ExpiresAt: expiresAt})
}

// healthz reports whether MongoDB answers.
func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
