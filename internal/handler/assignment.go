package handler

import (
	"errors"
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

// AssignmentHandler exposes the task reassignment approval workflow.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// Create handles POST /task-assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req model.CreateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignmentService.Request(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("Task assignment request created", a.ToResponse()))
}

// List handles GET /task-assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	filter := model.AssignmentFilter{Pagination: pagination(c)}
	if raw := c.Query("status"); raw != "" {
		status := model.AssignmentStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid status", "").WithCode(CodeValidation))
			return
		}
		filter.Status = &status
	}
	var ok bool
	if filter.TaskID, ok = queryID(c, "taskId"); !ok {
		return
	}
	if filter.AssignedTo, ok = queryID(c, "assignedTo"); !ok {
		return
	}
	if filter.AssignedBy, ok = queryID(c, "assignedBy"); !ok {
		return
	}

	page, err := h.assignmentService.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignments retrieved", page))
}

// Get handles GET /task-assignments/:assignmentId
func (h *AssignmentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	a, err := h.assignmentService.View(c.Request.Context(), callerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignment retrieved", a.ToResponse()))
}

// Update handles PUT /task-assignments/:assignmentId. Only notes on a
// pending request may change.
func (h *AssignmentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	var req model.UpdateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignmentService.Amend(c.Request.Context(), callerID(c), id, *req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignment updated", a.ToResponse()))
}

// Delete handles DELETE /task-assignments/:assignmentId
func (h *AssignmentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	if err := h.assignmentService.Withdraw(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignment request withdrawn", nil))
}

// Approve handles PUT /task-assignments/:assignmentId/approve
func (h *AssignmentHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	var req model.ApproveAssignmentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	a, err := h.assignmentService.Approve(c.Request.Context(), callerID(c), id, req.Notes)
	if err != nil {
		h.respondDecisionError(c, a, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignment approved", a.ToResponse()))
}

// Reject handles PUT /task-assignments/:assignmentId/reject
func (h *AssignmentHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	var req model.RejectAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assignmentService.Reject(c.Request.Context(), callerID(c), id, req.RejectionReason, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignment rejected", a.ToResponse()))
}

// Resync handles POST /task-assignments/:assignmentId/resync
func (h *AssignmentHandler) Resync(c *gin.Context) {
	id, ok := paramID(c, "assignmentId", "assignment")
	if !ok {
		return
	}
	a, err := h.assignmentService.ResyncAssignee(c.Request.Context(), callerID(c), id)
	if err != nil {
		h.respondDecisionError(c, a, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Task assignee synchronized", a.ToResponse()))
}

// respondDecisionError keeps the committed assignment in the body when only
// the task assignee write failed, so clients can retry resync by id.
func (h *AssignmentHandler) respondDecisionError(c *gin.Context, a *model.TaskAssignment, err error) {
	if a != nil && errors.Is(err, service.ErrAssigneeSync) {
		respondErrorData(c, err, a.ToResponse())
		return
	}
	respondError(c, err)
}
