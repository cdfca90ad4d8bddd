package handler

import (
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler handles account, session and password reset requests.
type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Register handles POST /users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewSuccessResponse("User registered successfully", resp))
}

// Login handles POST /users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Login successful", resp))
}

// Refresh handles POST /users/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.userService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Token refreshed", resp))
}

// ForgotPassword handles POST /users/forgot
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Password reset instructions sent to your email", nil))
}

// VerifyResetCode handles POST /users/verify-code
func (h *UserHandler) VerifyResetCode(c *gin.Context) {
	var req model.VerifyResetCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.VerifyResetCode(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Reset code verified", nil))
}

// ResetPassword handles POST /users/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.ResetPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Password reset successfully", nil))
}

// Profile handles GET /users/profile
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.userService.Profile(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Profile retrieved", user.ToResponse()))
}

// UpdateProfile handles PUT /users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req model.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Profile updated successfully", user.ToResponse()))
}

// List handles GET /users/all
func (h *UserHandler) List(c *gin.Context) {
	filter := model.UserFilter{IsActive: queryBool(c, "isActive"), Pagination: pagination(c)}
	if raw := c.Query("role"); raw != "" {
		role, err := permission.ParseRole(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid role", "").WithCode(CodeValidation))
			return
		}
		filter.Role = &role
	}
	page, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("Users retrieved", page))
}

// AdminUpdate handles PUT /users/:userId
func (h *UserHandler) AdminUpdate(c *gin.Context) {
	id, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	var req model.AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.AdminUpdate(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("User updated successfully", user.ToResponse()))
}

// Delete handles DELETE /users/:userId
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	if err := h.userService.Delete(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse("User deleted successfully", nil))
}
