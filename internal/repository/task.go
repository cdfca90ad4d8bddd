package repository

import (
	"context"
	"time"

	"taskflow/internal/model"
	"taskflow/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ITaskRepository defines task persistence
type ITaskRepository interface {
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update model.TaskUpdate) (*model.Task, error)
	// UpdateAssignee writes an approved assignee unless the task's assignee
	// changed after approvedAt. Returns nil, nil when the task no longer
	// exists or was reassigned later.
	UpdateAssignee(ctx context.Context, taskID, userID primitive.ObjectID, approvedAt time.Time) (*model.Task, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

// TaskRepository implements task persistence
type TaskRepository struct {
	base *generic.MongoBaseRepository[*model.Task]
}

func NewTaskRepository(db *mongo.Database) ITaskRepository {
	return &TaskRepository{base: generic.NewBaseRepository[*model.Task](db.Collection(TasksCollection))}
}

func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.base.Collection,
		mongo.IndexModel{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "assignedBy", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	)
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	if err := r.base.Create(ctx, task); err != nil {
		return nil, wrapWriteErr("create task", err)
	}
	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Task, error) {
	return r.base.FindByID(ctx, id)
}

func (r *TaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int64, error) {
	query := taskQuery(filter)
	total, err := r.base.Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	tasks, err := r.base.Find(ctx, query, generic.PageOptions(filter.Skip(), filter.Limit, newestFirst()))
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func taskQuery(filter model.TaskFilter) bson.M {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.Priority != nil {
		query["priority"] = *filter.Priority
	}
	if filter.AssignedTo != nil {
		query["assignedTo"] = *filter.AssignedTo
	}
	if filter.AssignedBy != nil {
		query["assignedBy"] = *filter.AssignedBy
	}
	if filter.ProjectID != "" {
		query["projectId"] = filter.ProjectID
	}
	if filter.Scope != nil {
		for k, v := range idScope("assignedTo", "assignedBy", *filter.Scope) {
			query[k] = v
		}
	}
	return query
}

func taskSet(update model.TaskUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Priority != nil {
		set["priority"] = *update.Priority
	}
	if update.AssignedTo != nil {
		set["assignedTo"] = *update.AssignedTo
	}
	if update.AssigneeChangedAt != nil {
		set["assigneeChangedAt"] = *update.AssigneeChangedAt
	}
	if update.ProjectID != nil {
		set["projectId"] = *update.ProjectID
	}
	if update.DueDate != nil {
		set["dueDate"] = *update.DueDate
	}
	if update.CompletedAt != nil {
		set["completedAt"] = *update.CompletedAt
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}
	if update.Attachments != nil {
		set["attachments"] = update.Attachments
	}
	if update.EstimatedHours != nil {
		set["estimatedHours"] = *update.EstimatedHours
	}
	if update.ActualHours != nil {
		set["actualHours"] = *update.ActualHours
	}
	return set
}

func (r *TaskRepository) Update(ctx context.Context, id primitive.ObjectID, update model.TaskUpdate) (*model.Task, error) {
	filter := bson.M{"_id": id}
	if update.CompletedAt != nil {
		// completedAt is written once
		filter["completedAt"] = bson.M{"$exists": false}
	}
	task, err := r.base.UpdateOne(ctx, filter, taskSet(update, time.Now()))
	if err != nil {
		return nil, wrapWriteErr("update task", err)
	}
	if task == nil && update.CompletedAt != nil {
		// Someone else stamped it first; apply the rest without the stamp.
		update.CompletedAt = nil
		return r.Update(ctx, id, update)
	}
	return task, nil
}

func (r *TaskRepository) UpdateAssignee(ctx context.Context, taskID, userID primitive.ObjectID, approvedAt time.Time) (*model.Task, error) {
	filter := bson.M{
		"_id": taskID,
		"$or": bson.A{
			bson.M{"assigneeChangedAt": bson.M{"$exists": false}},
			bson.M{"assigneeChangedAt": bson.M{"$lte": approvedAt}},
		},
	}
	set := bson.M{"assignedTo": userID, "assigneeChangedAt": approvedAt, "updatedAt": time.Now()}
	task, err := r.base.UpdateOne(ctx, filter, set)
	if err != nil {
		return nil, wrapWriteErr("update task assignee", err)
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.base.DeleteOne(ctx, bson.M{"_id": id})
}
