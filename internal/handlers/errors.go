package handlers

import (
	"context"
	"errors"
	"net/http"

	"field-review/backend/internal/attendance"
	"field-review/backend/internal/ledger"
	"field-review/backend/internal/review"
	"field-review/backend/internal/services"
	"field-review/backend/internal/session"
	"field-review/backend/internal/verification"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ledger.ErrTaskNotFound, http.StatusNotFound, "task_not_found", "Task not found or already reviewed"},
	{attendance.ErrNotMarkedToday, http.StatusNotFound, "attendance_not_marked", "Attendance has not been marked today"},
	{session.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
	{session.ErrIncorrectPassword, http.StatusUnauthorized, "incorrect_password", "Current password is incorrect"},
	{session.ErrNoSession, http.StatusUnauthorized, "session_ended", "Session is no longer active, please log in again"},
	{verification.ErrVerificationFailed, http.StatusUnauthorized, "verification_failed", "Face verification failed. Please try again."},
	{attendance.ErrNotVerified, http.StatusForbidden, "verification_required", "Complete face verification to continue"},
	{review.ErrTaskReviewed, http.StatusNotFound, "task_not_found", "Task not found or already reviewed"},
	{review.ErrAlreadySubmitted, http.StatusConflict, "already_reviewed", "Review has already been submitted"},
	{session.ErrEmailTaken, http.StatusConflict, "email_taken", "An account with this email already exists"},
	{attendance.ErrAlreadyMarked, http.StatusConflict, "attendance_already_marked", "Attendance has already been marked today"},
	{session.ErrWeakPassword, http.StatusUnprocessableEntity, "weak_password", "Password must be at least 6 characters"},
	{session.ErrPasswordTooLong, http.StatusUnprocessableEntity, "password_too_long", "Password must be at most 72 characters"},
	{services.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email", "Please enter a valid email address"},
	{attendance.ErrInvalidStatus, http.StatusUnprocessableEntity, "invalid_status", "Status must be present or leave"},
	{context.Canceled, http.StatusRequestTimeout, "cancelled", "Request was cancelled"},
	{context.DeadlineExceeded, http.StatusRequestTimeout, "timeout", "Request timed out"},
}

// respondError writes the error body for err. Unknown errors become a 500
// and are logged.
func respondError(c *gin.Context, err error) {
	var verr *review.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"field":   verr.Field,
			"message": verr.Message,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.code, "message": m.message})
			return
		}
	}

	log.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Something went wrong, please try again",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "Invalid request format",
		"details": err.Error(),
	})
}
