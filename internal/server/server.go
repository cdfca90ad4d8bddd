package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/permission"
	"taskflow/pkg/timer"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Server represents the HTTP server
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	mongo    *mongo.Client
	services *Services
}

// New connects to MongoDB, wires every layer and seeds initial data.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	sw := timer.NewStopwatch("server startup")
	defer sw.Total()

	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	mongoClient, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	sw.Lap("mongo connected")
	db := mongoClient.Database(cfg.Mongo.Database)

	repos := InitRepositories(db)
	if err := EnsureIndexes(ctx, repos); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, err
	}
	sw.Lap("indexes ensured")

	services := InitServices(cfg, repos)
	handlers := InitHandlers(services, mongoPinger{mongoClient})

	if err := PopulateInitialData(ctx, cfg, services); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to populate initial data: %w", err)
	}

	return &Server{
		cfg:      cfg,
		router:   setupRouter(handlers, services),
		mongo:    mongoClient,
		services: services,
	}, nil
}

func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI).SetTimeout(cfg.Mongo.Timeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

// Close disconnects MongoDB client
func (s *Server) Close() error {
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.mongo.Disconnect(ctx)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	s.startReconciler(reconcileCtx)

	srv := &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "app", s.cfg.App.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", s.cfg.Server.ShutdownTimeout())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// startReconciler periodically repairs approved assignments whose task
// assignee was never written.
func (s *Server) startReconciler(ctx context.Context) {
	if !s.cfg.Reconcile.Enabled {
		return
	}
	ticker := time.NewTicker(s.cfg.Reconcile.Interval())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				repaired, err := s.services.Assignment.ReconcileAssignees(ctx, s.cfg.Reconcile.BatchSize)
				if err != nil && !errors.Is(err, context.Canceled) {
					slog.Warn("assignee reconcile sweep failed", "error", err)
					continue
				}
				if repaired > 0 {
					slog.Info("assignee reconcile sweep", "repaired", repaired)
				}
			}
		}
	}()
}

func setupRouter(h *Handlers, s *Services) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies(nil)
	r.Use(middleware.Recovery(), middleware.RequestLogger("/api/health"))

	api := r.Group("/api")
	api.GET("/health", h.Health.Check)

	authed := middleware.AuthMiddleware(s.User)
	managers := middleware.RequireRoles(permission.RoleCEO, permission.RoleProjectManager)

	// Public account routes
	users := api.Group("/users")
	{
		users.POST("/register", h.User.Register)
		users.POST("/login", h.User.Login)
		users.POST("/refresh", h.User.Refresh)
		users.POST("/forgot", h.User.ForgotPassword)
		users.POST("/verify-code", h.User.VerifyResetCode)
		users.POST("/reset-password", h.User.ResetPassword)

		users.GET("/profile", authed, h.User.Profile)
		users.PUT("/profile", authed, h.User.UpdateProfile)
		users.GET("/all", authed, managers, h.User.List)
		users.PUT("/:userId", authed, managers, h.User.AdminUpdate)
		users.DELETE("/:userId", authed, managers, h.User.Delete)
	}

	protected := api.Group("")
	protected.Use(authed)

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", h.Task.Create)
		tasks.GET("", h.Task.List)
		tasks.GET("/user/:userId", h.Task.ListForUser)
		tasks.GET("/:taskId", h.Task.Get)
		tasks.PUT("/:taskId", h.Task.Update)
		tasks.DELETE("/:taskId", h.Task.Delete)
	}

	assignments := protected.Group("/task-assignments")
	{
		assignments.POST("", h.Assignment.Create)
		assignments.GET("", h.Assignment.List)
		assignments.GET("/:assignmentId", h.Assignment.Get)
		assignments.PUT("/:assignmentId", h.Assignment.Update)
		assignments.DELETE("/:assignmentId", h.Assignment.Delete)
		assignments.PUT("/:assignmentId/approve", h.Assignment.Approve)
		assignments.PUT("/:assignmentId/reject", h.Assignment.Reject)
		assignments.POST("/:assignmentId/resync", h.Assignment.Resync)
	}

	teams := protected.Group("/teams")
	{
		teams.POST("", h.Team.Create)
		teams.GET("", h.Team.List)
		teams.GET("/:teamId", h.Team.Get)
		teams.PUT("/:teamId", h.Team.Update)
		teams.DELETE("/:teamId", h.Team.Delete)
		teams.POST("/:teamId/members", h.Team.AddMember)
		teams.DELETE("/:teamId/members/:userId", h.Team.RemoveMember)
	}

	notices := protected.Group("/notices")
	{
		notices.POST("", h.Notice.Create)
		notices.GET("", h.Notice.List)
		notices.GET("/user", h.Notice.Feed)
		notices.GET("/:noticeId", h.Notice.Get)
		notices.PUT("/:noticeId", h.Notice.Update)
		notices.DELETE("/:noticeId", h.Notice.Delete)
	}

	protected.GET("/events", h.Events.Stream)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.NewErrorResponse("Route not found", c.Request.URL.Path).WithCode(handler.CodeNotFound))
	})

	return r
}
