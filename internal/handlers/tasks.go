package handlers

import (
	"net/http"
	"strconv"

	"field-review/backend/internal/middleware"
	"field-review/backend/internal/models"
	"field-review/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.taskService.Dashboard())
}

func (h *TaskHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.taskService.Categories()})
}

func (h *TaskHandler) Pending(c *gin.Context) {
	tasks := h.taskService.Pending(c.Query("category"))
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (h *TaskHandler) Reviewed(c *gin.Context) {
	tasks := h.taskService.Reviewed(c.Query("category"))
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.Get(models.TaskID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Review(c *gin.Context) {
	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess, _ := middleware.CurrentSession(c)
	task, err := h.taskService.Review(c.Request.Context(), sess, models.TaskID(c.Param("id")), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) History(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)

	records, err := h.taskService.History(c.Request.Context(), sess, queryLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": records, "count": len(records)})
}

// queryLimit reads ?limit=, zero when absent or malformed.
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
