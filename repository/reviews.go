package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/models"
)

// Reviews layers rating bookkeeping on top of the generic collection:
// every write recomputes the parent tour's ratingsAverage and
// ratingsQuantity. The handler factory stays unaware of this; it is an
// entity rule and lives here.
type Reviews struct {
	*Collection[models.Review]
	reviews *mongo.Collection
	tours   *mongo.Collection
}

func NewReviews(reviews, tours *mongo.Collection) *Reviews {
	return &Reviews{
		Collection: NewCollection[models.Review](reviews),
		reviews:    reviews,
		tours:      tours,
	}
}

func (r *Reviews) Create(ctx context.Context, doc models.Review) (models.Review, error) {
	created, err := r.Collection.Create(ctx, doc)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return models.Review{}, apperr.Conflict("you have already reviewed this tour")
		}
		return models.Review{}, err
	}
	if err := r.recalcRatings(ctx, created.Tour); err != nil {
		return models.Review{}, err
	}
	return created, nil
}

func (r *Reviews) UpdateByID(ctx context.Context, id string, patch bson.M) (models.Review, error) {
	updated, err := r.Collection.UpdateByID(ctx, id, patch)
	if err != nil {
		return models.Review{}, err
	}
	if err := r.recalcRatings(ctx, updated.Tour); err != nil {
		return models.Review{}, err
	}
	return updated, nil
}

func (r *Reviews) DeleteByID(ctx context.Context, id string) error {
	// The tour reference is needed after the row is gone, so read first.
	review, err := r.Collection.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Collection.DeleteByID(ctx, id); err != nil {
		return err
	}
	return r.recalcRatings(ctx, review.Tour)
}

// recalcRatings aggregates the tour's reviews and writes the fresh stats
// back. With no reviews left the tour falls back to the catalog defaults.
func (r *Reviews) recalcRatings(ctx context.Context, tourID bson.ObjectID) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"tour": tourID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"numRating": bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := r.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return apperr.Internal(err)
	}
	defer cursor.Close(ctx)

	var stats []struct {
		NumRating int     `bson:"numRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	if err := cursor.All(ctx, &stats); err != nil {
		return apperr.Internal(err)
	}

	set := bson.M{"ratingsAverage": 4.5, "ratingsQuantity": 0}
	if len(stats) > 0 {
		set = bson.M{
			"ratingsAverage":  stats[0].AvgRating,
			"ratingsQuantity": stats[0].NumRating,
		}
	}
	if _, err := r.tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{"$set": set}); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
