package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/internal/service"
	"taskflow/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Code    string `json:"code"`
}

type testApp struct {
	router   *gin.Engine
	services *Services
	tasks    *testutil.MockTaskRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handler.RegisterValidators())

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTRefreshSecret = "test-refresh-secret"
	cfg.SMTP.Host = ""

	tasks := testutil.NewMockTaskRepository()
	repos := &Repositories{
		Users:       testutil.NewMockUserRepository(),
		Tasks:       tasks,
		Assignments: testutil.NewMockAssignmentRepository(),
		Teams:       testutil.NewMockTeamRepository(),
		Notices:     testutil.NewMockNoticeRepository(),
		Resets:      testutil.NewMockPasswordResetRepository(),
	}
	require.NoError(t, EnsureIndexes(context.Background(), repos))

	services := InitServices(cfg, repos)
	handlers := InitHandlers(services, nil)
	return &testApp{router: setupRouter(handlers, services), services: services, tasks: tasks}
}

// signIn creates an account with role and returns its id and access token.
func (a *testApp) signIn(t *testing.T, name string, role permission.Role) (primitive.ObjectID, string) {
	t.Helper()
	email := name + "@example.com"
	user, err := a.services.User.Create(context.Background(), service.NewUser{
		Name:     name,
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)

	status, resp := call[model.AuthResponse](t, a.router, http.MethodPost, "/api/users/login", "",
		map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	return user.ID, resp.Data.Token
}

func call[T any](t *testing.T, r http.Handler, method, path, token string, body any) (int, envelope[T]) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	status, resp := call[map[string]any](t, app.router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Data["status"])
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)
	status, resp := call[any](t, app.router, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestRegisterAndProfile(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{"name": "Jo", "email": "jo@example.com", "password": "secret123"}

	status, reg := call[model.AuthResponse](t, app.router, http.MethodPost, "/api/users/register", "", body)
	require.Equal(t, http.StatusCreated, status, reg.Message)
	assert.Equal(t, permission.RoleTeamMember, reg.Data.User.Role)
	assert.NotEmpty(t, reg.Data.RefreshToken)

	status, dup := call[any](t, app.router, http.MethodPost, "/api/users/register", "", body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", dup.Code)

	status, bad := call[any](t, app.router, http.MethodPost, "/api/users/register", "",
		map[string]string{"name": "Jo", "email": "not-an-email", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", bad.Code)

	status, login := call[any](t, app.router, http.MethodPost, "/api/users/login", "",
		map[string]string{"email": "jo@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", login.Message)

	status, _ = call[any](t, app.router, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, profile := call[model.UserResponse](t, app.router, http.MethodGet, "/api/users/profile", reg.Data.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "jo@example.com", profile.Data.Email)
	assert.False(t, profile.Data.Capabilities.CanApproveTaskAssignments)

	status, refreshed := call[model.AuthResponse](t, app.router, http.MethodPost, "/api/users/refresh", "",
		map[string]string{"refreshToken": reg.Data.RefreshToken})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, refreshed.Data.Token)
}

func TestManagerOnlyUserRoutes(t *testing.T) {
	app := newTestApp(t)
	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)

	status, resp := call[any](t, app.router, http.MethodGet, "/api/users/all", member, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", resp.Code)

	status, page := call[model.Page[model.UserResponse]](t, app.router, http.MethodGet, "/api/users/all?role=teamMember", ceo, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, memberID.Hex(), page.Data.Items[0].ID)

	status, _ = call[any](t, app.router, http.MethodPut, "/api/users/not-an-id", ceo, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, updated := call[model.UserResponse](t, app.router, http.MethodPut, "/api/users/"+memberID.Hex(), ceo,
		map[string]any{"department": "Ops"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ops", updated.Data.Department)
}

func TestAssignmentApprovalFlow(t *testing.T) {
	app := newTestApp(t)
	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	otherID, _ := app.signIn(t, "other", permission.RoleTeamMember)

	status, task := call[model.TaskResponse](t, app.router, http.MethodPost, "/api/tasks", ceo, map[string]any{
		"title":       "Ship release",
		"description": "Cut and publish",
		"assignedTo":  memberID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status, task.Message)
	assert.Equal(t, model.PriorityMedium, task.Data.Priority)

	status, created := call[model.AssignmentResponse](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.Data.ID,
		"assignedTo": otherID.Hex(),
		"notes":      "on leave next week",
	})
	require.Equal(t, http.StatusCreated, status, created.Message)
	assert.Equal(t, model.AssignmentPending, created.Data.Status)

	status, dup := call[any](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.Data.ID,
		"assignedTo": otherID.Hex(),
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", dup.Code)

	path := "/api/task-assignments/" + created.Data.ID
	status, denied := call[any](t, app.router, http.MethodPut, path+"/approve", member, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Insufficient permissions", denied.Message)

	status, approved := call[model.AssignmentResponse](t, app.router, http.MethodPut, path+"/approve", ceo, map[string]any{"notes": "ok"})
	require.Equal(t, http.StatusOK, status, approved.Message)
	assert.Equal(t, model.AssignmentApproved, approved.Data.Status)
	assert.True(t, approved.Data.AssigneeSynced)

	status, moved := call[model.TaskResponse](t, app.router, http.MethodGet, "/api/tasks/"+task.Data.ID, ceo, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, otherID.Hex(), moved.Data.AssignedTo)

	status, again := call[any](t, app.router, http.MethodPut, path+"/reject", ceo, map[string]any{"rejectionReason": "late"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", again.Code)

	status, list := call[model.Page[model.AssignmentResponse]](t, app.router, http.MethodGet, "/api/task-assignments?status=approved", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list.Data.Items, 1)
}

func TestRejectRequiresReason(t *testing.T) {
	app := newTestApp(t)
	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	otherID, _ := app.signIn(t, "other", permission.RoleTeamMember)
	task := app.tasks.Add("Write docs", memberID, memberID)

	status, created := call[model.AssignmentResponse](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.ID.Hex(),
		"assignedTo": otherID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status)

	path := "/api/task-assignments/" + created.Data.ID + "/reject"
	status, resp := call[any](t, app.router, http.MethodPut, path, ceo, map[string]any{"rejectionReason": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	status, rejected := call[model.AssignmentResponse](t, app.router, http.MethodPut, path, ceo, map[string]any{"rejectionReason": "needs owner"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.AssignmentRejected, rejected.Data.Status)
	assert.Equal(t, memberID, app.tasks.Get(task.ID).AssignedTo)
}

func TestApproveSyncFailureThenResync(t *testing.T) {
	app := newTestApp(t)
	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	otherID, _ := app.signIn(t, "other", permission.RoleTeamMember)
	task := app.tasks.Add("Migrate DB", memberID, memberID)

	status, created := call[model.AssignmentResponse](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.ID.Hex(),
		"assignedTo": otherID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status)

	app.tasks.SetUpdateAssigneeErr(errors.New("primary stepped down"))
	path := "/api/task-assignments/" + created.Data.ID
	status, pending := call[model.AssignmentResponse](t, app.router, http.MethodPut, path+"/approve", ceo, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "ASSIGNEE_SYNC_PENDING", pending.Code)
	assert.Equal(t, created.Data.ID, pending.Data.ID)
	assert.Equal(t, model.AssignmentApproved, pending.Data.Status)
	assert.Equal(t, memberID, app.tasks.Get(task.ID).AssignedTo)

	app.tasks.SetUpdateAssigneeErr(nil)
	status, synced := call[model.AssignmentResponse](t, app.router, http.MethodPost, path+"/resync", ceo, nil)
	require.Equal(t, http.StatusOK, status, synced.Message)
	assert.Equal(t, otherID, app.tasks.Get(task.ID).AssignedTo)
}

func TestTaskValidation(t *testing.T) {
	app := newTestApp(t)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)

	status, resp := call[any](t, app.router, http.MethodPost, "/api/tasks", member, map[string]any{
		"description": "no title",
		"assignedTo":  memberID.Hex(),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Message, "Title is required")

	status, _ = call[any](t, app.router, http.MethodGet, "/api/tasks/123", member, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call[any](t, app.router, http.MethodGet, "/api/tasks?status=done", member, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, missing := call[any](t, app.router, http.MethodGet, "/api/tasks/"+primitive.NewObjectID().Hex(), member, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", missing.Code)
}

func TestTeamAndNoticeRoutes(t *testing.T) {
	app := newTestApp(t)
	pmID, pm := app.signIn(t, "pm", permission.RoleProjectManager)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	_, hr := app.signIn(t, "hr", permission.RoleHR)

	status, team := call[model.TeamResponse](t, app.router, http.MethodPost, "/api/teams", pm, map[string]any{
		"name":        "Platform",
		"description": "Infra",
		"leaderId":    pmID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status, team.Message)

	status, added := call[model.TeamResponse](t, app.router, http.MethodPost, "/api/teams/"+team.Data.ID+"/members", pm,
		map[string]string{"userId": memberID.Hex()})
	require.Equal(t, http.StatusOK, status, added.Message)
	assert.Equal(t, 2, added.Data.MemberCount)

	status, _ = call[any](t, app.router, http.MethodDelete, "/api/teams/"+team.Data.ID+"/members/"+memberID.Hex(), member, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call[any](t, app.router, http.MethodPost, "/api/notices", member, map[string]any{"title": "Hi", "content": "All"})
	assert.Equal(t, http.StatusForbidden, status)

	status, notice := call[model.NoticeResponse](t, app.router, http.MethodPost, "/api/notices", hr, map[string]any{
		"title":       "Holiday",
		"content":     "Office closed Friday",
		"type":        "holiday",
		"targetRoles": []string{"teamMember"},
	})
	require.Equal(t, http.StatusCreated, status, notice.Message)

	status, feed := call[model.Page[model.NoticeResponse]](t, app.router, http.MethodGet, "/api/notices/user", member, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, feed.Data.Items, 1)
	assert.Equal(t, notice.Data.ID, feed.Data.Items[0].ID)

	status, feed = call[model.Page[model.NoticeResponse]](t, app.router, http.MethodGet, "/api/notices/user", pm, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, feed.Data.Items)
}

func TestEventStream(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	otherID, _ := app.signIn(t, "other", permission.RoleTeamMember)
	task := app.tasks.Add("Rotate keys", memberID, memberID)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?token=" + ceo
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.services.Events.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, created := call[model.AssignmentResponse](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.ID.Hex(),
		"assignedTo": otherID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev service.AssignmentEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, service.EventAssignmentRequested, ev.Type)
	assert.Equal(t, created.Data.ID, ev.Assignment.ID)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	assert.Error(t, err)
}

func dialEvents(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestEventStreamFollowsAccountChanges(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	_, ceo := app.signIn(t, "ceo", permission.RoleCEO)
	pmID, pm := app.signIn(t, "pm", permission.RoleProjectManager)
	hrID, hr := app.signIn(t, "hr", permission.RoleHR)
	memberID, member := app.signIn(t, "member", permission.RoleTeamMember)
	otherID, _ := app.signIn(t, "other", permission.RoleTeamMember)
	task := app.tasks.Add("Rotate keys", memberID, memberID)

	pmConn := dialEvents(t, srv, pm)
	defer pmConn.Close()
	hrConn := dialEvents(t, srv, hr)
	defer hrConn.Close()
	require.Eventually(t, func() bool { return app.services.Events.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	status, _ := call[any](t, app.router, http.MethodPut, "/api/users/"+pmID.Hex(), ceo, map[string]any{"role": "teamMember"})
	require.Equal(t, http.StatusOK, status)
	status, _ = call[any](t, app.router, http.MethodPut, "/api/users/"+hrID.Hex(), ceo, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, status)

	// Not involving the demoted manager, so it must be filtered out.
	status, _ = call[any](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.ID.Hex(),
		"assignedTo": otherID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status)
	status, involved := call[model.AssignmentResponse](t, app.router, http.MethodPost, "/api/task-assignments", member, map[string]any{
		"taskId":     task.ID.Hex(),
		"assignedTo": pmID.Hex(),
	})
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, pmConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev service.AssignmentEvent
	require.NoError(t, pmConn.ReadJSON(&ev))
	assert.Equal(t, involved.Data.ID, ev.Assignment.ID)

	require.NoError(t, hrConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := hrConn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), err.Error())
}
