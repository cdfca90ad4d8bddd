package handler

import (
	"net/http"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Create handles POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req model.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.Create(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("Task created successfully", task.ToResponse(time.Now())))
}

// List handles GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	filter, ok := taskFilter(c)
	if !ok {
		return
	}
	page, err := h.taskService.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Tasks retrieved", page))
}

// ListForUser handles GET /tasks/user/:userId
func (h *TaskHandler) ListForUser(c *gin.Context) {
	userID, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	filter, ok := taskFilter(c)
	if !ok {
		return
	}
	page, err := h.taskService.ListForUser(c.Request.Context(), callerID(c), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Tasks retrieved", page))
}

// Get handles GET /tasks/:taskId
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "taskId", "task")
	if !ok {
		return
	}
	task, err := h.taskService.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task retrieved", task.ToResponse(time.Now())))
}

// Update handles PUT /tasks/:taskId
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "taskId", "task")
	if !ok {
		return
	}
	var req model.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.Update(c.Request.Context(), callerID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task updated successfully", task.ToResponse(time.Now())))
}

// Delete handles DELETE /tasks/:taskId
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "taskId", "task")
	if !ok {
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task deleted successfully", nil))
}

func taskFilter(c *gin.Context) (model.TaskFilter, bool) {
	filter := model.TaskFilter{ProjectID: c.Query("projectId"), Pagination: pagination(c)}
	if raw := c.Query("status"); raw != "" {
		status := model.TaskStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid status", "").WithCode(CodeValidation))
			return filter, false
		}
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := model.TaskPriority(raw)
		if !priority.Valid() {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid priority", "").WithCode(CodeValidation))
			return filter, false
		}
		filter.Priority = &priority
	}
	var ok bool
	if filter.AssignedTo, ok = queryID(c, "assignedTo"); !ok {
		return filter, false
	}
	if filter.AssignedBy, ok = queryID(c, "assignedBy"); !ok {
		return filter, false
	}
	return filter, true
}
