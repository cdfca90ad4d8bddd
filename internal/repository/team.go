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

// ITeamRepository defines team persistence
type ITeamRepository interface {
	Create(ctx context.Context, team *model.Team) (*model.Team, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Team, error)
	List(ctx context.Context, filter model.TeamFilter) ([]*model.Team, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update model.TeamUpdate) (*model.Team, error)
	AddMember(ctx context.Context, id, userID primitive.ObjectID) (*model.Team, error)
	RemoveMember(ctx context.Context, id, userID primitive.ObjectID) (*model.Team, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

// TeamRepository implements team persistence
type TeamRepository struct {
	base *generic.MongoBaseRepository[*model.Team]
}

func NewTeamRepository(db *mongo.Database) ITeamRepository {
	return &TeamRepository{base: generic.NewBaseRepository[*model.Team](db.Collection(TeamsCollection))}
}

func (r *TeamRepository) EnsureIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.base.Collection,
		mongo.IndexModel{Keys: bson.D{{Key: "memberIds", Value: 1}}},
	)
}

func (r *TeamRepository) Create(ctx context.Context, team *model.Team) (*model.Team, error) {
	if err := r.base.Create(ctx, team); err != nil {
		return nil, wrapWriteErr("create team", err)
	}
	return team, nil
}

func (r *TeamRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Team, error) {
	return r.base.FindByID(ctx, id)
}

func (r *TeamRepository) List(ctx context.Context, filter model.TeamFilter) ([]*model.Team, int64, error) {
	query := bson.M{}
	if filter.IsActive != nil {
		query["isActive"] = *filter.IsActive
	}
	total, err := r.base.Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	teams, err := r.base.Find(ctx, query, generic.PageOptions(filter.Skip(), filter.Limit, newestFirst()))
	if err != nil {
		return nil, 0, err
	}
	return teams, total, nil
}

func (r *TeamRepository) Update(ctx context.Context, id primitive.ObjectID, update model.TeamUpdate) (*model.Team, error) {
	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.LeaderID != nil {
		set["leaderId"] = *update.LeaderID
	}
	if update.MemberIDs != nil {
		set["memberIds"] = update.MemberIDs
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}
	team, err := r.base.UpdateOne(ctx, bson.M{"_id": id}, set)
	if err != nil {
		return nil, wrapWriteErr("update team", err)
	}
	return team, nil
}

func (r *TeamRepository) modifyMembers(ctx context.Context, id primitive.ObjectID, change bson.M) (*model.Team, error) {
	change["$set"] = bson.M{"updatedAt": time.Now()}
	var team *model.Team
	err := r.base.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, change, returnAfter()).Decode(&team)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return team, nil
}

func (r *TeamRepository) AddMember(ctx context.Context, id, userID primitive.ObjectID) (*model.Team, error) {
	return r.modifyMembers(ctx, id, bson.M{"$addToSet": bson.M{"memberIds": userID}})
}

func (r *TeamRepository) RemoveMember(ctx context.Context, id, userID primitive.ObjectID) (*model.Team, error) {
	return r.modifyMembers(ctx, id, bson.M{"$pull": bson.M{"memberIds": userID}})
}

func (r *TeamRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.base.DeleteOne(ctx, bson.M{"_id": id})
}
