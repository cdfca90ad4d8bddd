package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// Authenticator resolves an access token to its account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthMiddleware requires a valid bearer token. Websocket clients that cannot
// set headers may pass the token as the "token" query parameter.
func AuthMiddleware(users Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && c.IsWebsocket() {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "Access denied. No token provided.", "UNAUTHENTICATED")
			return
		}

		user, err := users.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				abort(c, http.StatusUnauthorized, service.Message(err), "UNAUTHENTICATED")
				return
			}
			abort(c, http.StatusInternalServerError, "Internal server error", "INTERNAL")
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// RequireRoles admits only users whose role is one of roles. It must run
// after AuthMiddleware.
func RequireRoles(roles ...permission.Role) gin.HandlerFunc {
	allowed := make(map[permission.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED")
			return
		}
		if _, ok := allowed[user.Role]; !ok || !user.IsActive {
			abort(c, http.StatusForbidden, "Insufficient permissions", "PERMISSION_DENIED")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, model.NewErrorResponse(message, "").WithCode(code))
}
