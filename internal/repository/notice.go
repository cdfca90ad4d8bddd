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

// INoticeRepository defines notice persistence
type INoticeRepository interface {
	Create(ctx context.Context, notice *model.Notice) (*model.Notice, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Notice, error)
	List(ctx context.Context, filter model.NoticeFilter) ([]*model.Notice, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update model.NoticeUpdate) (*model.Notice, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

// NoticeRepository implements notice persistence
type NoticeRepository struct {
	base *generic.MongoBaseRepository[*model.Notice]
}

func NewNoticeRepository(db *mongo.Database) INoticeRepository {
	return &NoticeRepository{base: generic.NewBaseRepository[*model.Notice](db.Collection(NoticesCollection))}
}

func (r *NoticeRepository) EnsureIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.base.Collection,
		mongo.IndexModel{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "targetRoles", Value: 1}}},
	)
}

func (r *NoticeRepository) Create(ctx context.Context, notice *model.Notice) (*model.Notice, error) {
	if err := r.base.Create(ctx, notice); err != nil {
		return nil, wrapWriteErr("create notice", err)
	}
	return notice, nil
}

func (r *NoticeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Notice, error) {
	return r.base.FindByID(ctx, id)
}

func (r *NoticeRepository) List(ctx context.Context, filter model.NoticeFilter) ([]*model.Notice, int64, error) {
	query := noticeQuery(filter)
	total, err := r.base.Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	notices, err := r.base.Find(ctx, query, generic.PageOptions(filter.Skip(), filter.Limit, newestFirst()))
	if err != nil {
		return nil, 0, err
	}
	return notices, total, nil
}

// noticeQuery combines the role target and expiry conditions with $and so
// neither $or clobbers the other.
func noticeQuery(filter model.NoticeFilter) bson.M {
	query := bson.M{}
	var and bson.A
	if filter.Type != nil {
		query["type"] = *filter.Type
	}
	if filter.IsActive != nil {
		query["isActive"] = *filter.IsActive
	}
	if filter.TargetRole != nil {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"targetRoles": bson.M{"$size": 0}},
			bson.M{"targetRoles": bson.M{"$exists": false}},
			bson.M{"targetRoles": *filter.TargetRole},
		}})
	}
	if filter.ActiveAt != nil {
		query["isActive"] = true
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"expiryDate": bson.M{"$exists": false}},
			bson.M{"expiryDate": nil},
			bson.M{"expiryDate": bson.M{"$gte": *filter.ActiveAt}},
		}})
	}
	if len(and) > 0 {
		query["$and"] = and
	}
	return query
}

func (r *NoticeRepository) Update(ctx context.Context, id primitive.ObjectID, update model.NoticeUpdate) (*model.Notice, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Type != nil {
		set["type"] = *update.Type
	}
	if update.ScheduledDate != nil {
		set["scheduledDate"] = *update.ScheduledDate
	}
	if update.ExpiryDate != nil {
		set["expiryDate"] = *update.ExpiryDate
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}
	if update.TargetRoles != nil {
		set["targetRoles"] = update.TargetRoles
	}
	if update.ImageURL != nil {
		set["imageUrl"] = *update.ImageURL
	}
	if update.Attachments != nil {
		set["attachments"] = update.Attachments
	}
	notice, err := r.base.UpdateOne(ctx, bson.M{"_id": id}, set)
	if err != nil {
		return nil, wrapWriteErr("update notice", err)
	}
	return notice, nil
}

func (r *NoticeRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.base.DeleteOne(ctx, bson.M{"_id": id})
}
