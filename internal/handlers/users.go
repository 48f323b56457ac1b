package handlers

import (
	"net/http"

	"field-review/backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Me returns the identity and verification state of the current session.
func Me(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_session", "message": "Authentication is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        sess.Identity,
		"session_id":  sess.ID,
		"started_at":  sess.StartedAt,
		"verified":    sess.Verified,
		"verified_at": sess.VerifiedAt,
	})
}
