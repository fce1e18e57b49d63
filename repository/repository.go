// Package repository implements persistence over MongoDB. A single
// generic Collection covers uniform CRUD for any entity type; entity
// stores with real business rules (users, reviews) are built on top of
// or alongside it.
package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/query"
)

// Repository is the capability set the handler factory is generic over.
// Implementations must map store failures into the apperr taxonomy.
type Repository[T any] interface {
	Create(ctx context.Context, doc T) (T, error)
	FindByID(ctx context.Context, id string, fields ...string) (T, error)
	FindMany(ctx context.Context, plan query.Plan, ambient bson.M) ([]T, error)
	UpdateByID(ctx context.Context, id string, patch bson.M) (T, error)
	DeleteByID(ctx context.Context, id string) error
}

// Collection implements Repository over a mongo collection. Updates stamp
// an internal revision counter; single-document updates are atomic, which
// is the only atomicity the service relies on.
type Collection[T any] struct {
	col *mongo.Collection
}

func NewCollection[T any](col *mongo.Collection) *Collection[T] {
	return &Collection[T]{col: col}
}

func (c *Collection[T]) Create(ctx context.Context, doc T) (T, error) {
	var zero T
	res, err := c.col.InsertOne(ctx, doc)
	if err != nil {
		if IsDuplicateKey(err) {
			return zero, apperr.Conflict("duplicate value for a unique field")
		}
		return zero, apperr.Internal(err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return doc, nil
	}
	return c.findOne(ctx, bson.M{"_id": id}, nil)
}

// FindByID loads one document. The optional fields act as a projection
// hint for related data the caller wants included.
func (c *Collection[T]) FindByID(ctx context.Context, id string, fields ...string) (T, error) {
	var zero T
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return zero, apperr.NotFound("no document found with that ID")
	}
	var projection bson.M
	if len(fields) > 0 {
		projection = bson.M{}
		for _, f := range fields {
			projection[f] = 1
		}
	}
	return c.findOne(ctx, bson.M{"_id": oid}, projection)
}

func (c *Collection[T]) FindMany(ctx context.Context, plan query.Plan, ambient bson.M) ([]T, error) {
	cursor, err := c.col.Find(ctx, plan.Criteria(ambient), plan.FindOptions())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.Internal(err)
	}
	return docs, nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch bson.M) (T, error) {
	var zero T
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return zero, apperr.NotFound("no document found with that ID")
	}

	var updated T
	err = c.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": patch, "$inc": bson.M{"revision": 1}},
		afterUpdate(),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, apperr.NotFound("no document found with that ID")
		}
		if IsDuplicateKey(err) {
			return zero, apperr.Conflict("duplicate value for a unique field")
		}
		return zero, apperr.Internal(err)
	}
	return updated, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFound("no document found with that ID")
	}
	res, err := c.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return apperr.Internal(err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("no document found with that ID")
	}
	return nil
}

func (c *Collection[T]) findOne(ctx context.Context, filter, projection bson.M) (T, error) {
	var doc T
	opts := afterFindProjection(projection)
	if err := c.col.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, apperr.NotFound("no document found with that ID")
		}
		return doc, apperr.Internal(err)
	}
	return doc, nil
}

// IsDuplicateKey reports whether err is a mongo unique-index violation.
func IsDuplicateKey(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 11000 || ce.Code == 11001) {
		return true
	}
	return strings.Contains(err.Error(), "E11000 duplicate key error")
}
