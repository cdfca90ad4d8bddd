package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "inProgress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

var taskStatusText = map[TaskStatus]string{
	TaskStatusTodo:       "To Do",
	TaskStatusInProgress: "In Progress",
	TaskStatusCompleted:  "Completed",
	TaskStatusCancelled:  "Cancelled",
}

func (s TaskStatus) Valid() bool {
	_, ok := taskStatusText[s]
	return ok
}

func (s TaskStatus) Text() string {
	if text, ok := taskStatusText[s]; ok {
		return text
	}
	return taskStatusText[TaskStatusTodo]
}

// TaskPriority ranks how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

var taskPriorityText = map[TaskPriority]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
	PriorityUrgent: "Urgent",
}

func (p TaskPriority) Valid() bool {
	_, ok := taskPriorityText[p]
	return ok
}

func (p TaskPriority) Text() string {
	if text, ok := taskPriorityText[p]; ok {
		return text
	}
	return taskPriorityText[PriorityMedium]
}

const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 1000
)

type Task struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description" json:"description"`
	Status         TaskStatus         `bson:"status" json:"status"`
	Priority       TaskPriority       `bson:"priority" json:"priority"`
	AssignedTo     primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	AssignedBy     primitive.ObjectID `bson:"assignedBy" json:"assignedBy"`
	ProjectID      string             `bson:"projectId,omitempty" json:"projectId,omitempty"`
	DueDate        *time.Time         `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	CompletedAt    *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Tags           []string           `bson:"tags" json:"tags"`
	Attachments    []string           `bson:"attachments" json:"attachments"`
	EstimatedHours float64            `bson:"estimatedHours" json:"estimatedHours"`
	ActualHours    float64            `bson:"actualHours" json:"actualHours"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`

	// AssigneeChangedAt is when assignedTo was last written, either directly
	// or from an approval. An approval older than this no longer applies.
	AssigneeChangedAt *time.Time `bson:"assigneeChangedAt,omitempty" json:"-"`
}

func (t *Task) GetID() primitive.ObjectID   { return t.ID }
func (t *Task) SetID(id primitive.ObjectID) { t.ID = id }

// IsOverdue reports whether the due date has passed on an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskStatusCompleted {
		return false
	}
	return now.After(*t.DueDate)
}

// CompletionStamp returns the completedAt value a move to status should
// persist. It is non-nil only on the first transition into completed; an
// existing stamp is kept even if the task is later reopened.
func (t *Task) CompletionStamp(status TaskStatus, now time.Time) *time.Time {
	if status != TaskStatusCompleted || t.CompletedAt != nil {
		return nil
	}
	stamp := now
	return &stamp
}

type TaskResponse struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Status         TaskStatus   `json:"status"`
	StatusText     string       `json:"statusText"`
	Priority       TaskPriority `json:"priority"`
	PriorityText   string       `json:"priorityText"`
	AssignedTo     string       `json:"assignedTo"`
	AssignedBy     string       `json:"assignedBy"`
	ProjectID      string       `json:"projectId,omitempty"`
	DueDate        *time.Time   `json:"dueDate,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	IsOverdue      bool         `json:"isOverdue"`
	Tags           []string     `json:"tags"`
	Attachments    []string     `json:"attachments"`
	EstimatedHours float64      `json:"estimatedHours"`
	ActualHours    float64      `json:"actualHours"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

func (t *Task) ToResponse(now time.Time) TaskResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return TaskResponse{
		ID:             t.ID.Hex(),
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		StatusText:     t.Status.Text(),
		Priority:       t.Priority,
		PriorityText:   t.Priority.Text(),
		AssignedTo:     t.AssignedTo.Hex(),
		AssignedBy:     t.AssignedBy.Hex(),
		ProjectID:      t.ProjectID,
		DueDate:        t.DueDate,
		CompletedAt:    t.CompletedAt,
		IsOverdue:      t.IsOverdue(now),
		Tags:           tags,
		Attachments:    attachments,
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// TaskFilter narrows task listings. Nil fields are not applied. When Scope
// is set only tasks assigned to or created by that user are returned.
type TaskFilter struct {
	Status     *TaskStatus
	Priority   *TaskPriority
	AssignedTo *primitive.ObjectID
	AssignedBy *primitive.ObjectID
	ProjectID  string
	Scope      *primitive.ObjectID
	Pagination
}

// TaskUpdate holds optional task field changes.
type TaskUpdate struct {
	Title          *string
	Description    *string
	Status         *TaskStatus
	Priority       *TaskPriority
	AssignedTo     *primitive.ObjectID
	ProjectID      *string
	DueDate        *time.Time
	CompletedAt    *time.Time
	Tags           []string
	Attachments    []string
	EstimatedHours *float64
	ActualHours    *float64

	// AssigneeChangedAt accompanies AssignedTo.
	AssigneeChangedAt *time.Time
}

type CreateTaskRequest struct {
	Title          string     `json:"title" binding:"required,max=200"`
	Description    string     `json:"description" binding:"required,max=1000"`
	Priority       string     `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo     string     `json:"assignedTo" binding:"required,objectid"`
	ProjectID      string     `json:"projectId" binding:"max=100"`
	DueDate        *time.Time `json:"dueDate"`
	Tags           []string   `json:"tags" binding:"omitempty,dive,max=50"`
	Attachments    []string   `json:"attachments" binding:"omitempty,dive,max=500"`
	EstimatedHours float64    `json:"estimatedHours" binding:"gte=0"`
}

type UpdateTaskRequest struct {
	Title          *string    `json:"title" binding:"omitempty,max=200"`
	Description    *string    `json:"description" binding:"omitempty,max=1000"`
	Status         *string    `json:"status" binding:"omitempty,oneof=todo inProgress completed cancelled"`
	Priority       *string    `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	AssignedTo     *string    `json:"assignedTo" binding:"omitempty,objectid"`
	ProjectID      *string    `json:"projectId" binding:"omitempty,max=100"`
	DueDate        *time.Time `json:"dueDate"`
	Tags           []string   `json:"tags" binding:"omitempty,dive,max=50"`
	Attachments    []string   `json:"attachments" binding:"omitempty,dive,max=500"`
	EstimatedHours *float64   `json:"estimatedHours" binding:"omitempty,gte=0"`
	ActualHours    *float64   `json:"actualHours" binding:"omitempty,gte=0"`
}
