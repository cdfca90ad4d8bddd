package repository

import (
	"context"
	"time"

	"taskflow/internal/model"
	"taskflow/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IAssignmentRepository defines task assignment persistence. Every write
// that depends on the record still being pending carries that condition in
// the store filter, so concurrent callers see exactly one winner.
type IAssignmentRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.TaskAssignment, error)
	// FindActive returns the pending or approved assignment for the pair.
	FindActive(ctx context.Context, taskID, userID primitive.ObjectID) (*model.TaskAssignment, error)
	// Insert returns ErrDuplicate if an active assignment for the pair exists.
	Insert(ctx context.Context, a *model.TaskAssignment) (*model.TaskAssignment, error)
	// UpdateStatus moves a pending assignment to a terminal status. Returns
	// nil, nil when the record is missing or no longer pending.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, decision model.AssignmentDecision) (*model.TaskAssignment, error)
	// UpdateNotes rewrites notes on a pending assignment; nil, nil otherwise.
	UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*model.TaskAssignment, error)
	// DeletePending reports whether a pending record was removed.
	DeletePending(ctx context.Context, id primitive.ObjectID) (bool, error)
	DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error)
	List(ctx context.Context, filter model.AssignmentFilter) ([]*model.TaskAssignment, int64, error)
	// LatestApproved returns the most recently approved assignment of a task.
	LatestApproved(ctx context.Context, taskID primitive.ObjectID) (*model.TaskAssignment, error)
	MarkSynced(ctx context.Context, id primitive.ObjectID) error
	// ListUnsynced returns approved assignments whose task assignee was not
	// yet rewritten, oldest approval first.
	ListUnsynced(ctx context.Context, limit int) ([]*model.TaskAssignment, error)
	EnsureIndexes(ctx context.Context) error
}

// AssignmentRepository implements task assignment persistence
type AssignmentRepository struct {
	base *generic.MongoBaseRepository[*model.TaskAssignment]
}

func NewAssignmentRepository(db *mongo.Database) IAssignmentRepository {
	return &AssignmentRepository{
		base: generic.NewBaseRepository[*model.TaskAssignment](db.Collection(AssignmentsCollection)),
	}
}

// EnsureIndexes creates the partial unique index that allows at most one
// active assignment per (taskId, assignedTo). Partial filters using $in
// need MongoDB 6.0 or newer.
func (r *AssignmentRepository) EnsureIndexes(ctx context.Context) error {
	active := bson.M{"status": bson.M{"$in": bson.A{model.AssignmentPending, model.AssignmentApproved}}}
	return createIndexes(ctx, r.base.Collection,
		mongo.IndexModel{
			Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "assignedTo", Value: 1}},
			Options: options.Index().
				SetName("active_assignment_per_user").
				SetUnique(true).
				SetPartialFilterExpression(active),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "assignedBy", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "assigneeSynced", Value: 1}, {Key: "status", Value: 1}}},
	)
}

func (r *AssignmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.TaskAssignment, error) {
	return r.base.FindByID(ctx, id)
}

func (r *AssignmentRepository) FindActive(ctx context.Context, taskID, userID primitive.ObjectID) (*model.TaskAssignment, error) {
	return r.base.FindOne(ctx, bson.M{
		"taskId":     taskID,
		"assignedTo": userID,
		"status":     bson.M{"$in": bson.A{model.AssignmentPending, model.AssignmentApproved}},
	})
}

func (r *AssignmentRepository) Insert(ctx context.Context, a *model.TaskAssignment) (*model.TaskAssignment, error) {
	if err := r.base.Create(ctx, a); err != nil {
		return nil, wrapWriteErr("insert assignment", err)
	}
	return a, nil
}

func pendingFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "status": model.AssignmentPending}
}

func decisionSet(d model.AssignmentDecision) bson.M {
	set := bson.M{
		"status":     d.Status,
		"approvedBy": d.DecidedBy,
		"approvedAt": d.DecidedAt,
		"updatedAt":  d.DecidedAt,
	}
	if d.Status == model.AssignmentRejected {
		set["rejectionReason"] = d.RejectionReason
	}
	if d.Status == model.AssignmentApproved {
		set["assigneeSynced"] = false
	}
	if d.Notes != nil {
		set["notes"] = *d.Notes
	}
	return set
}

func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, decision model.AssignmentDecision) (*model.TaskAssignment, error) {
	a, err := r.base.UpdateOne(ctx, pendingFilter(id), decisionSet(decision))
	if err != nil {
		return nil, wrapWriteErr("update assignment status", err)
	}
	return a, nil
}

func (r *AssignmentRepository) UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*model.TaskAssignment, error) {
	a, err := r.base.UpdateOne(ctx, pendingFilter(id), bson.M{"notes": notes, "updatedAt": time.Now()})
	if err != nil {
		return nil, wrapWriteErr("update assignment notes", err)
	}
	return a, nil
}

func (r *AssignmentRepository) DeletePending(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.base.DeleteOne(ctx, pendingFilter(id))
}

func (r *AssignmentRepository) DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error) {
	return r.base.DeleteMany(ctx, bson.M{"taskId": taskID})
}

func (r *AssignmentRepository) List(ctx context.Context, filter model.AssignmentFilter) ([]*model.TaskAssignment, int64, error) {
	query := assignmentQuery(filter)
	total, err := r.base.Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.base.Find(ctx, query, generic.PageOptions(filter.Skip(), filter.Limit, newestFirst()))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func assignmentQuery(filter model.AssignmentFilter) bson.M {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.TaskID != nil {
		query["taskId"] = *filter.TaskID
	}
	if filter.AssignedTo != nil {
		query["assignedTo"] = *filter.AssignedTo
	}
	if filter.AssignedBy != nil {
		query["assignedBy"] = *filter.AssignedBy
	}
	if filter.Scope != nil {
		for k, v := range idScope("assignedBy", "assignedTo", *filter.Scope) {
			query[k] = v
		}
	}
	return query
}

func (r *AssignmentRepository) LatestApproved(ctx context.Context, taskID primitive.ObjectID) (*model.TaskAssignment, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "approvedAt", Value: -1}, {Key: "_id", Value: -1}})
	var a *model.TaskAssignment
	err := r.base.Collection.FindOne(ctx, bson.M{"taskId": taskID, "status": model.AssignmentApproved}, opts).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *AssignmentRepository) MarkSynced(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.base.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.AssignmentApproved},
		bson.M{"$set": bson.M{"assigneeSynced": true}},
	)
	return wrapWriteErr("mark assignment synced", err)
}

func (r *AssignmentRepository) ListUnsynced(ctx context.Context, limit int) ([]*model.TaskAssignment, error) {
	opts := generic.PageOptions(0, limit, bson.D{{Key: "approvedAt", Value: 1}})
	return r.base.Find(ctx, bson.M{"status": model.AssignmentApproved, "assigneeSynced": false}, opts)
}
