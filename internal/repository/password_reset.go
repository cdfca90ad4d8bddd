package repository

import (
	"context"
	"errors"
	"time"

	"taskflow/internal/model"
	"taskflow/pkg/generic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IPasswordResetRepository defines password reset persistence
type IPasswordResetRepository interface {
	Create(ctx context.Context, reset *model.PasswordReset) (*model.PasswordReset, error)
	DeleteByEmail(ctx context.Context, email string) error
	// FindActive returns the unused, unexpired reset issued to email.
	FindActive(ctx context.Context, email string, now time.Time) (*model.PasswordReset, error)
	// FindByTokenHash returns an unused, unexpired reset by token hash and email.
	FindByTokenHash(ctx context.Context, tokenHash, email string, now time.Time) (*model.PasswordReset, error)
	// RecordFailedAttempt counts a wrong code and marks the reset used once
	// max attempts are reached. It returns the attempt count.
	RecordFailedAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error)
	// MarkUsed reports whether this call consumed the reset.
	MarkUsed(ctx context.Context, id primitive.ObjectID) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

// PasswordResetRepository implements password reset persistence
type PasswordResetRepository struct {
	base *generic.MongoBaseRepository[*model.PasswordReset]
}

func NewPasswordResetRepository(db *mongo.Database) IPasswordResetRepository {
	return &PasswordResetRepository{
		base: generic.NewBaseRepository[*model.PasswordReset](db.Collection(PasswordResetsCollection)),
	}
}

// EnsureIndexes adds a TTL index so expired resets are purged by the server.
func (r *PasswordResetRepository) EnsureIndexes(ctx context.Context) error {
	return createIndexes(ctx, r.base.Collection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}, {Key: "used", Value: 1}}},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset *model.PasswordReset) (*model.PasswordReset, error) {
	if err := r.base.Create(ctx, reset); err != nil {
		return nil, wrapWriteErr("create password reset", err)
	}
	return reset, nil
}

func (r *PasswordResetRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.base.DeleteMany(ctx, bson.M{"email": email})
	return err
}

func (r *PasswordResetRepository) FindActive(ctx context.Context, email string, now time.Time) (*model.PasswordReset, error) {
	return r.base.FindOne(ctx, bson.M{
		"email":     email,
		"used":      false,
		"expiresAt": bson.M{"$gt": now},
	})
}

func (r *PasswordResetRepository) FindByTokenHash(ctx context.Context, tokenHash, email string, now time.Time) (*model.PasswordReset, error) {
	return r.base.FindOne(ctx, bson.M{
		"tokenHash": tokenHash,
		"email":     email,
		"used":      false,
		"expiresAt": bson.M{"$gt": now},
	})
}

func (r *PasswordResetRepository) RecordFailedAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error) {
	var reset model.PasswordReset
	err := r.base.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "used": false},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&reset)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return max, nil
	}
	if err != nil {
		return 0, wrapWriteErr("record password reset attempt", err)
	}
	if reset.Attempts >= max {
		if _, err := r.MarkUsed(ctx, id); err != nil {
			return reset.Attempts, err
		}
	}
	return reset.Attempts, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	reset, err := r.base.UpdateOne(ctx, bson.M{"_id": id, "used": false}, bson.M{"used": true, "updatedAt": time.Now()})
	if err != nil {
		return false, wrapWriteErr("mark password reset used", err)
	}
	return reset != nil, nil
}
