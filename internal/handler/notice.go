package handler

import (
	"net/http"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

type NoticeHandler struct {
	noticeService *service.NoticeService
}

func NewNoticeHandler(noticeService *service.NoticeService) *NoticeHandler {
	return &NoticeHandler{noticeService: noticeService}
}

// Create handles POST /notices
func (h *NoticeHandler) Create(c *gin.Context) {
	var req model.CreateNoticeRequest
	if !bindJSON(c, &req) {
		return
	}
	notice, err := h.noticeService.Create(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("Notice created successfully", notice.ToResponse(time.Now())))
}

// List handles GET /notices
func (h *NoticeHandler) List(c *gin.Context) {
	filter := model.NoticeFilter{IsActive: queryBool(c, "isActive"), Pagination: pagination(c)}
	if raw := c.Query("type"); raw != "" {
		typ := model.NoticeType(raw)
		if !typ.Valid() {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid notice type", "").WithCode(CodeValidation))
			return
		}
		filter.Type = &typ
	}
	if raw := c.Query("targetRole"); raw != "" {
		role, err := permission.ParseRole(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid role", "").WithCode(CodeValidation))
			return
		}
		filter.TargetRole = &role
	}
	page, err := h.noticeService.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Notices retrieved", page))
}

// Feed handles GET /notices/user, the notices addressed to the caller's role.
func (h *NoticeHandler) Feed(c *gin.Context) {
	page, err := h.noticeService.ForUser(c.Request.Context(), callerID(c), pagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Notices retrieved", page))
}

// Get handles GET /notices/:noticeId
func (h *NoticeHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "noticeId", "notice")
	if !ok {
		return
	}
	notice, err := h.noticeService.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Notice retrieved", notice.ToResponse(time.Now())))
}

// Update handles PUT /notices/:noticeId
func (h *NoticeHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "noticeId", "notice")
	if !ok {
		return
	}
	var req model.UpdateNoticeRequest
	if !bindJSON(c, &req) {
		return
	}
	notice, err := h.noticeService.Update(c.Request.Context(), callerID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Notice updated successfully", notice.ToResponse(time.Now())))
}

// Delete handles DELETE /notices/:noticeId
func (h *NoticeHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "noticeId", "notice")
	if !ok {
		return
	}
	if err := h.noticeService.Delete(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Notice deleted successfully", nil))
}
