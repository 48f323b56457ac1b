package handlers

import (
	"net/http"

	"field-review/backend/internal/middleware"
	"field-review/backend/internal/models"
	"field-review/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AttendanceHandler struct {
	attendanceService services.AttendanceService
}

func NewAttendanceHandler(attendanceService services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

type MarkAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" binding:"required"`
}

func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess, _ := middleware.CurrentSession(c)
	rec, err := h.attendanceService.Mark(c.Request.Context(), sess, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *AttendanceHandler) Today(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)

	rec, err := h.attendanceService.Today(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *AttendanceHandler) History(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)

	records, err := h.attendanceService.History(c.Request.Context(), sess, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}
