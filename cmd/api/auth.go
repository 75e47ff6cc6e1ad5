package main

import (
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/finance-organizer/internal/auth"
	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// claimsKey is the gin context key holding the caller's auth claims.
const claimsKey = "auth_claims"

// getClaims extracts auth claims from the gin context, if present.
func getClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// callerID returns the authenticated user's id. Routes behind
// authMiddleware always have one.
func callerID(c *gin.Context) string {
	claims, _ := getClaims(c)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// authMiddleware enforces JWT authentication and stores the claims for
// handlers. A valid token whose user no longer exists is rejected too.
func authMiddleware(j *auth.JWTManager, users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "missing authorization header")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			abortUnauthenticated(c, "invalid token")
			return
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			abortUnauthenticated(c, "unauthenticated")
			return
		}

		// VerifyToken already checked the id is a valid hex ObjectID
		id, _ := bson.ObjectIDFromHex(claims.UserID)
		if _, err := users.GetUserByID(c.Request.Context(), id); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				abortUnauthenticated(c, "unauthenticated")
				return
			}
			writeError(c, errors.Wrap(err, "resolve caller"))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// callerKey rate limits authenticated routes per user.
func callerKey(c *gin.Context) string {
	if id := callerID(c); id != "" {
		return "user:" + id
	}
	return middleware.IPKey(c)
}
