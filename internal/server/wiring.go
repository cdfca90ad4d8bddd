package server

import (
	"context"
	"fmt"
	"log/slog"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/mail"
	"taskflow/internal/repository"
	"taskflow/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
)

const eventBufferSize = 64

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// Repositories groups the stores behind every service.
type Repositories struct {
	Users       repository.IUserRepository
	Tasks       repository.ITaskRepository
	Assignments repository.IAssignmentRepository
	Teams       repository.ITeamRepository
	Notices     repository.INoticeRepository
	Resets      repository.IPasswordResetRepository
}

type Services struct {
	User       *service.UserService
	Task       *service.TaskService
	Assignment *service.AssignmentService
	Team       *service.TeamService
	Notice     *service.NoticeService
	Events     *service.EventHub
}

type Handlers struct {
	User       *handler.UserHandler
	Task       *handler.TaskHandler
	Assignment *handler.AssignmentHandler
	Team       *handler.TeamHandler
	Notice     *handler.NoticeHandler
	Events     *handler.EventsHandler
	Health     *handler.HealthHandler
}

func InitRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Users:       repository.NewUserRepository(db),
		Tasks:       repository.NewTaskRepository(db),
		Assignments: repository.NewAssignmentRepository(db),
		Teams:       repository.NewTeamRepository(db),
		Notices:     repository.NewNoticeRepository(db),
		Resets:      repository.NewPasswordResetRepository(db),
	}
}

// EnsureIndexes creates the unique, partial and TTL indexes each store
// relies on. Index creation is idempotent.
func EnsureIndexes(ctx context.Context, repos *Repositories) error {
	stores := map[string]indexer{
		"users":            repos.Users,
		"tasks":            repos.Tasks,
		"task_assignments": repos.Assignments,
		"teams":            repos.Teams,
		"notices":          repos.Notices,
		"password_resets":  repos.Resets,
	}
	for name, store := range stores {
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

func InitServices(cfg *config.Config, repos *Repositories) *Services {
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTRefreshSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	events := service.NewEventHub(eventBufferSize)
	return &Services{
		User:       service.NewUserService(repos.Users, repos.Teams, repos.Resets, tokens, mail.New(cfg.SMTP), cfg),
		Task:       service.NewTaskService(repos.Tasks, repos.Assignments, repos.Users),
		Assignment: service.NewAssignmentService(repos.Assignments, repos.Tasks, repos.Users, events),
		Team:       service.NewTeamService(repos.Teams, repos.Users),
		Notice:     service.NewNoticeService(repos.Notices, repos.Users),
		Events:     events,
	}
}

func InitHandlers(services *Services, store handler.Pinger) *Handlers {
	return &Handlers{
		User:       handler.NewUserHandler(services.User),
		Task:       handler.NewTaskHandler(services.Task),
		Assignment: handler.NewAssignmentHandler(services.Assignment),
		Team:       handler.NewTeamHandler(services.Team),
		Notice:     handler.NewNoticeHandler(services.Notice),
		Events:     handler.NewEventsHandler(services.Events, services.User),
		Health:     handler.NewHealthHandler(store),
	}
}

// PopulateInitialData bootstraps the configured system CEO account.
func PopulateInitialData(ctx context.Context, cfg *config.Config, services *Services) error {
	user, created, err := services.User.EnsureSystemUser(ctx, cfg.SystemUser)
	if err != nil {
		return fmt.Errorf("failed to ensure system user: %w", err)
	}
	if created {
		slog.Info("system user created", "email", user.Email, "role", user.Role)
	}
	return nil
}
