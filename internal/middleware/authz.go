package middleware

import (
	"errors"
	"net/http"
	"strings"

	"field-review/backend/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// Authenticator resolves a bearer token to the live session it belongs to.
type Authenticator interface {
	Authenticate(token string) (session.Session, error)
}

func AuthzMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		sess, err := auth.Authenticate(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if errors.Is(err, session.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "session_ended",
				"message": "Session is no longer active, please log in again",
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// RequireVerified blocks sessions that have not passed face verification.
// It must run after AuthzMiddleware.
func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_session",
				"message": "Authentication is required",
			})
			return
		}
		if !sess.Verified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "verification_required",
				"message": "Complete face verification to continue",
			})
			return
		}
		c.Next()
	}
}

func CurrentSession(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := v.(session.Session)
	return sess, ok
}

// SetSession is used by tests that exercise handlers without a token.
func SetSession(c *gin.Context, sess session.Session) {
	c.Set(sessionContextKey, sess)
}
