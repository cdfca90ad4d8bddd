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

// IUserRepository defines user persistence
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update model.UserUpdate) (*model.User, error)
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
	AssignTeam(ctx context.Context, teamID primitive.ObjectID, userIDs []primitive.ObjectID) error
	// ClearTeam unsets teamId on users pointing at teamID, optionally only
	// for userID.
	ClearTeam(ctx context.Context, teamID primitive.ObjectID, userID *primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

// UserRepository implements user persistence
type UserRepository struct {
	base *generic.MongoBaseRepository[*model.User]
}

func NewUserRepository(db *mongo.Database) IUserRepository {
	return &UserRepository{base: generic.NewBaseRepository[*model.User](db.Collection(UsersCollection))}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.base.Collection,
		uniqueIndex(bson.D{{Key: "email", Value: 1}}),
		mongo.IndexModel{Keys: bson.D{{Key: "role", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "teamId", Value: 1}}},
	)
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if err := r.base.Create(ctx, user); err != nil {
		return nil, wrapWriteErr("create user", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return r.base.FindByID(ctx, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.base.FindOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, int64, error) {
	query := userQuery(filter)
	total, err := r.base.Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := generic.PageOptions(filter.Skip(), filter.Limit, newestFirst())
	users, err := r.base.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func userQuery(filter model.UserFilter) bson.M {
	query := bson.M{}
	if filter.Role != nil {
		query["role"] = *filter.Role
	}
	if filter.IsActive != nil {
		query["isActive"] = *filter.IsActive
	}
	return query
}

func userSet(update model.UserUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Role != nil {
		set["role"] = *update.Role
	}
	if update.Department != nil {
		set["department"] = *update.Department
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.IsActive != nil {
		set["isActive"] = *update.IsActive
	}
	if update.TeamID != nil {
		set["teamId"] = *update.TeamID
	}
	return set
}

func (r *UserRepository) Update(ctx context.Context, id primitive.ObjectID, update model.UserUpdate) (*model.User, error) {
	user, err := r.base.UpdateOne(ctx, bson.M{"_id": id}, userSet(update, time.Now()))
	if err != nil {
		return nil, wrapWriteErr("update user", err)
	}
	return user, nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := r.base.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"password": hash, "updatedAt": time.Now()})
	return wrapWriteErr("set password", err)
}

func (r *UserRepository) AssignTeam(ctx context.Context, teamID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.base.Collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": userIDs}},
		bson.M{"$set": bson.M{"teamId": teamID, "updatedAt": time.Now()}},
	)
	return wrapWriteErr("assign team", err)
}

func (r *UserRepository) ClearTeam(ctx context.Context, teamID primitive.ObjectID, userID *primitive.ObjectID) error {
	filter := bson.M{"teamId": teamID}
	if userID != nil {
		filter["_id"] = *userID
	}
	_, err := r.base.Collection.UpdateMany(ctx, filter, bson.M{
		"$unset": bson.M{"teamId": ""},
		"$set":   bson.M{"updatedAt": time.Now()},
	})
	return wrapWriteErr("clear team", err)
}

func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.base.DeleteOne(ctx, bson.M{"_id": id})
}
