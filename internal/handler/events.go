package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventPingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// SubscriberLookup reloads a subscriber's account while its stream is open.
type SubscriberLookup interface {
	ActiveUser(ctx context.Context, id primitive.ObjectID) (*model.User, error)
}

// EventsHandler streams assignment events over a websocket.
type EventsHandler struct {
	hub   *service.EventHub
	users SubscriberLookup
}

func NewEventsHandler(hub *service.EventHub, users SubscriberLookup) *EventsHandler {
	return &EventsHandler{hub: hub, users: users}
}

// recheck reloads the subscriber so role changes and deactivation apply to
// a stream that is already open.
func (h *EventsHandler) recheck(ctx context.Context, id primitive.ObjectID) (*model.User, bool) {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	user, err := h.users.ActiveUser(ctx, id)
	if err != nil {
		slog.Debug("event stream subscriber revoked", "user", id.Hex(), "error", err)
		return nil, false
	}
	return user, true
}

// canSee reports whether user should receive ev: approvers see every event,
// everyone else only those they requested or are the target of.
func canSee(user *model.User, ev service.AssignmentEvent) bool {
	if user.Capabilities().CanApproveTaskAssignments {
		return true
	}
	id := user.ID.Hex()
	return ev.Assignment.AssignedTo == id || ev.Assignment.AssignedBy == id
}

// Stream handles GET /events
func (h *EventsHandler) Stream(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse("Authentication required", "").WithCode(CodeUnauthenticated))
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	userID := user.ID
	slog.Debug("event stream opened", "user", userID.Hex())
	defer slog.Debug("event stream closed", "user", userID.Hex())

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{})
	var shutdownOnce sync.Once
	closeShutdown := func() {
		shutdownOnce.Do(func() {
			close(shutdownChan)
		})
	}

	// Client reads only detect disconnects; clients do not send commands.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("event stream client closed", "user", userID.Hex(), "error", err)
				}
				closeShutdown()
				return
			}
		}
	}()

	revoke := func() {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscription revoked")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteTimeout))
		closeShutdown()
	}

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdownChan:
			conn.Close()
			wg.Wait()
			return
		case <-c.Request.Context().Done():
			closeShutdown()
		case <-ticker.C:
			if user, ok = h.recheck(c.Request.Context(), userID); !ok {
				revoke()
				continue
			}
			deadline := time.Now().Add(eventWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				closeShutdown()
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				closeShutdown()
				continue
			}
			if user, ok = h.recheck(c.Request.Context(), userID); !ok {
				revoke()
				continue
			}
			if !canSee(user, ev) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				closeShutdown()
			}
		}
	}
}
