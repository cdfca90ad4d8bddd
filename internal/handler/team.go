package handler

import (
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamService *service.TeamService
}

func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// Create handles POST /teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req model.CreateTeamRequest
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.teamService.Create(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("Team created successfully", team.ToResponse()))
}

// List handles GET /teams
func (h *TeamHandler) List(c *gin.Context) {
	filter := model.TeamFilter{IsActive: queryBool(c, "isActive"), Pagination: pagination(c)}
	page, err := h.teamService.List(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Teams retrieved", page))
}

// Get handles GET /teams/:teamId
func (h *TeamHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}
	team, err := h.teamService.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Team retrieved", team.ToResponse()))
}

// Update handles PUT /teams/:teamId
func (h *TeamHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}
	var req model.UpdateTeamRequest
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.teamService.Update(c.Request.Context(), callerID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Team updated successfully", team.ToResponse()))
}

// Delete handles DELETE /teams/:teamId
func (h *TeamHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}
	if err := h.teamService.Delete(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Team deleted successfully", nil))
}

// AddMember handles POST /teams/:teamId/members
func (h *TeamHandler) AddMember(c *gin.Context) {
	id, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}
	var req model.AddTeamMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := parseHex(c, req.UserID, "user")
	if !ok {
		return
	}
	team, err := h.teamService.AddMember(c.Request.Context(), callerID(c), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Member added successfully", team.ToResponse()))
}

// RemoveMember handles DELETE /teams/:teamId/members/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	id, ok := paramID(c, "teamId", "team")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	team, err := h.teamService.RemoveMember(c.Request.Context(), callerID(c), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Member removed successfully", team.ToResponse()))
}
