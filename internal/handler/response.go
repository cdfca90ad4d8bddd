package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stable error codes returned in the envelope's code field.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodePermission      = "PERMISSION_DENIED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidState    = "INVALID_STATE"
	CodeAssigneeSync    = "ASSIGNEE_SYNC_PENDING"
	CodeInternal        = "INTERNAL"
)

// errorStatus maps a service error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, CodePermission
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, service.ErrAssigneeSync):
		return http.StatusServiceUnavailable, CodeAssigneeSync
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func respondError(c *gin.Context, err error) {
	respondErrorData(c, err, nil)
}

// respondErrorData writes an error envelope that still carries data, used
// when an operation committed but a follow-up step failed.
func respondErrorData(c *gin.Context, err error, data any) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		slog.Error("request failed", "request_id", c.GetString(middleware.RequestIDKey),
			"path", c.Request.URL.Path, "error", err)
	}
	resp := model.NewErrorResponse(service.Message(err), "").WithCode(code)
	resp.Data = data
	c.JSON(status, resp)
}

// bindJSON decodes the body into req and reports binding failures as 400.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(bindingMessage(err), "").WithCode(CodeValidation))
		return false
	}
	return true
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "role":
		return field + " must be a valid role"
	case "objectid":
		return field + " must be a valid ID"
	default:
		return field + " is invalid"
	}
}

// callerID returns the authenticated user's id set by the auth middleware.
func callerID(c *gin.Context) primitive.ObjectID {
	id, _ := middleware.UserID(c)
	return id
}

// paramID parses the named path parameter as an ObjectID, answering 400
// when it is malformed.
func paramID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	return parseHex(c, c.Param(name), label)
}

func parseHex(c *gin.Context, raw, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid "+label+" ID format", "").WithCode(CodeValidation))
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryID parses an optional ObjectID query parameter.
func queryID(c *gin.Context, name string) (*primitive.ObjectID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse("Invalid "+name, "").WithCode(CodeValidation))
		return nil, false
	}
	return &id, true
}

func queryBool(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// pagination reads page and limit; invalid values fall back to defaults.
func pagination(c *gin.Context) model.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return model.Pagination{Page: page, Limit: limit}
}
