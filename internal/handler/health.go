package handler

import (
	"context"
	"net/http"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/version"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	started time.Time
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now()}
}

type healthStatus struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Uptime   string       `json:"uptime"`
	Version  version.Info `json:"version"`
}

// Check handles GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	status := healthStatus{
		Status:   "ok",
		Database: "connected",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Version:  version.Get(),
	}
	code := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	resp := model.NewSuccessResponse("Server is running", status)
	resp.Success = code == http.StatusOK
	c.JSON(code, resp)
}
