package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/pkg/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskService struct {
	tasks       repository.ITaskRepository
	assignments repository.IAssignmentRepository
	users       repository.IUserRepository
	now         func() time.Time
}

func NewTaskService(
	tasks repository.ITaskRepository,
	assignments repository.IAssignmentRepository,
	users repository.IUserRepository,
) *TaskService {
	return &TaskService{tasks: tasks, assignments: assignments, users: users, now: time.Now}
}

// Create stores a new task. Handing the task to anyone but the caller needs
// direct assignment rights; everyone else goes through an assignment request.
func (s *TaskService) Create(ctx context.Context, callerID primitive.ObjectID, req *model.CreateTaskRequest) (*model.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("Title is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, invalid("Description is required")
	}
	priority := model.PriorityMedium
	if req.Priority != "" {
		priority = model.TaskPriority(req.Priority)
		if !priority.Valid() {
			return nil, invalid("Invalid priority")
		}
	}
	assigneeID, err := util.ParseObjectID(req.AssignedTo)
	if err != nil {
		return nil, invalid("Invalid assignee ID")
	}

	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if assigneeID != caller.ID && !caller.Capabilities().CanAssignTasksDirectly {
		return nil, denied()
	}
	if assigneeID != caller.ID {
		assignee, err := s.users.FindByID(ctx, assigneeID)
		if err != nil {
			return nil, fmt.Errorf("find assignee: %w", err)
		}
		if assignee == nil {
			return nil, notFound("Assignee")
		}
	}

	now := s.now()
	task, err := s.tasks.Create(ctx, &model.Task{
		Title:          title,
		Description:    description,
		Status:         model.TaskStatusTodo,
		Priority:       priority,
		AssignedTo:     assigneeID,
		AssignedBy:     caller.ID,
		ProjectID:      strings.TrimSpace(req.ProjectID),
		DueDate:        req.DueDate,
		Tags:           cleanList(req.Tags),
		Attachments:    cleanList(req.Attachments),
		EstimatedHours: req.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Get returns a task visible to the caller: its assignee, its creator or
// anyone who can view all tasks.
func (s *TaskService) Get(ctx context.Context, callerID, id primitive.ObjectID) (*model.Task, error) {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTouch(caller, task) {
		return nil, denied()
	}
	return task, nil
}

// List returns tasks newest first. Without canViewAllTasks the listing is
// limited to tasks assigned to or created by the caller.
func (s *TaskService) List(ctx context.Context, callerID primitive.ObjectID, filter model.TaskFilter) (model.Page[model.TaskResponse], error) {
	var page model.Page[model.TaskResponse]
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return page, err
	}
	filter.Scope = nil
	if !caller.Capabilities().CanViewAllTasks {
		filter.Scope = &caller.ID
	}
	return s.list(ctx, filter)
}

// ListForUser lists tasks assigned to userID. Callers may list their own
// tasks; listing someone else's needs canViewAllTasks.
func (s *TaskService) ListForUser(ctx context.Context, callerID, userID primitive.ObjectID, filter model.TaskFilter) (model.Page[model.TaskResponse], error) {
	var page model.Page[model.TaskResponse]
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return page, err
	}
	if caller.ID != userID && !caller.Capabilities().CanViewAllTasks {
		return page, denied()
	}
	filter.Scope = nil
	filter.AssignedTo = &userID
	return s.list(ctx, filter)
}

func (s *TaskService) list(ctx context.Context, filter model.TaskFilter) (model.Page[model.TaskResponse], error) {
	filter.Pagination = normalizePage(filter.Pagination)
	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return model.Page[model.TaskResponse]{}, fmt.Errorf("list tasks: %w", err)
	}
	now := s.now()
	out := make([]model.TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = t.ToResponse(now)
	}
	return model.NewPage(out, total, filter.Page, filter.Limit), nil
}

// Update applies field changes. The first move into completed stamps
// completedAt; reopening keeps the stamp.
func (s *TaskService) Update(ctx context.Context, callerID, id primitive.ObjectID, req *model.UpdateTaskRequest) (*model.Task, error) {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTouch(caller, task) {
		return nil, denied()
	}

	update, err := s.buildUpdate(ctx, caller, task, req)
	if err != nil {
		return nil, err
	}
	updated, err := s.tasks.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFound("Task")
	}
	return updated, nil
}

func (s *TaskService) buildUpdate(ctx context.Context, caller *model.User, task *model.Task, req *model.UpdateTaskRequest) (model.TaskUpdate, error) {
	update := model.TaskUpdate{
		ProjectID:      trimmed(req.ProjectID),
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
	}
	if req.Tags != nil {
		update.Tags = cleanList(req.Tags)
	}
	if req.Attachments != nil {
		update.Attachments = cleanList(req.Attachments)
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return update, invalid("Title cannot be empty")
		}
		update.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return update, invalid("Description cannot be empty")
		}
		update.Description = &description
	}
	if req.Priority != nil {
		priority := model.TaskPriority(*req.Priority)
		if !priority.Valid() {
			return update, invalid("Invalid priority")
		}
		update.Priority = &priority
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		if !status.Valid() {
			return update, invalid("Invalid status")
		}
		update.Status = &status
		update.CompletedAt = task.CompletionStamp(status, s.now())
	}
	if req.AssignedTo != nil {
		assigneeID, err := util.ParseObjectID(*req.AssignedTo)
		if err != nil {
			return update, invalid("Invalid assignee ID")
		}
		if assigneeID != task.AssignedTo {
			if !caller.Capabilities().CanAssignTasksDirectly {
				return update, denied()
			}
			assignee, err := s.users.FindByID(ctx, assigneeID)
			if err != nil {
				return update, fmt.Errorf("find assignee: %w", err)
			}
			if assignee == nil {
				return update, notFound("Assignee")
			}
			changedAt := s.now()
			update.AssignedTo = &assigneeID
			update.AssigneeChangedAt = &changedAt
		}
	}
	return update, nil
}

// Delete removes a task and every assignment record that references it.
// Only the creator or someone who can view all tasks may delete.
func (s *TaskService) Delete(ctx context.Context, callerID, id primitive.ObjectID) error {
	caller, err := loadActor(ctx, s.users, callerID)
	if err != nil {
		return err
	}
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if task.AssignedBy != caller.ID && !caller.Capabilities().CanViewAllTasks {
		return denied()
	}

	removed, err := s.assignments.DeleteByTask(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task assignments: %w", err)
	}
	if _, err := s.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	slog.Info("task deleted", "task", id.Hex(), "assignments", removed, "by", caller.ID.Hex())
	return nil
}

func (s *TaskService) find(ctx context.Context, id primitive.ObjectID) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		return nil, notFound("Task")
	}
	return task, nil
}

func canTouch(caller *model.User, task *model.Task) bool {
	return task.AssignedTo == caller.ID || task.AssignedBy == caller.ID ||
		caller.Capabilities().CanViewAllTasks
}

// cleanList trims entries and drops blanks. The result is never nil.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
