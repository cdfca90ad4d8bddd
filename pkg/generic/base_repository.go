package generic

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BaseRepository Interface
type BaseRepository[T Entity] interface {
	Create(ctx context.Context, entity T) error
	FindByID(ctx context.Context, id primitive.ObjectID) (T, error)
	FindOne(ctx context.Context, filter bson.M) (T, error)
	Find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	UpdateOne(ctx context.Context, filter bson.M, set bson.M) (T, error)
	DeleteOne(ctx context.Context, filter bson.M) (bool, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
}

// MongoBaseRepository Implementation
type MongoBaseRepository[T Entity] struct {
	Collection *mongo.Collection
}

func NewBaseRepository[T Entity](collection *mongo.Collection) *MongoBaseRepository[T] {
	return &MongoBaseRepository[T]{Collection: collection}
}

// Create assigns a fresh ObjectID and inserts the entity.
func (r *MongoBaseRepository[T]) Create(ctx context.Context, entity T) error {
	entity.SetID(primitive.NewObjectID())
	_, err := r.Collection.InsertOne(ctx, entity)
	return err
}

// FindByID returns the zero T (nil for pointer entities) and no error when
// nothing matches.
func (r *MongoBaseRepository[T]) FindByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

func (r *MongoBaseRepository[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	var entity T
	err := r.Collection.FindOne(ctx, filter).Decode(&entity)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, nil
		}
		return zero, err
	}
	return entity, nil
}

func (r *MongoBaseRepository[T]) Find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Collection.Name(), err)
	}
	return items, nil
}

func (r *MongoBaseRepository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return r.Collection.CountDocuments(ctx, filter)
}

// UpdateOne applies $set to the first document matching filter and returns
// the updated document, or the zero T when the filter matched nothing. The
// filter is the precondition: callers put state guards in it.
func (r *MongoBaseRepository[T]) UpdateOne(ctx context.Context, filter bson.M, set bson.M) (T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var entity T
	err := r.Collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&entity)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, nil
		}
		return zero, err
	}
	return entity, nil
}

// DeleteOne reports whether a document matched filter and was removed.
func (r *MongoBaseRepository[T]) DeleteOne(ctx context.Context, filter bson.M) (bool, error) {
	res, err := r.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoBaseRepository[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := r.Collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// PageOptions builds find options for one page sorted by sort.
func PageOptions(skip int64, limit int, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort).SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
