package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/dto"
	"github.com/davrell/trekbackend/middleware"
	"github.com/davrell/trekbackend/models"
)

// TourScope restricts a nested review listing to its parent tour. The
// router reuses the :id parameter for the tour segment, so that is what
// gets read here. An invalid tour id scopes to nothing rather than
// everything.
func TourScope(c *gin.Context) bson.M {
	tourID := c.Param("id")
	if tourID == "" {
		return nil
	}
	oid, err := bson.ObjectIDFromHex(tourID)
	if err != nil {
		return bson.M{"tour": bson.NilObjectID}
	}
	return bson.M{"tour": oid}
}

// BuildReview binds review input, defaulting the tour from the nested
// route and the user from the authenticated principal.
func BuildReview(c *gin.Context) (models.Review, error) {
	var body dto.CreateReviewDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		return models.Review{}, apperr.Validation(err.Error())
	}

	if body.Tour == "" {
		body.Tour = c.Param("id") // tour id on the nested route
	}
	tourID, err := bson.ObjectIDFromHex(body.Tour)
	if err != nil {
		return models.Review{}, apperr.Validation("a review must belong to a tour")
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.Review{}, apperr.Authentication("you are not logged in")
	}

	return models.Review{
		ID:        bson.NewObjectID(),
		Review:    body.Review,
		Rating:    body.Rating,
		Tour:      tourID,
		User:      user.ID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func BuildReviewPatch(c *gin.Context) (bson.M, error) {
	var body dto.UpdateReviewDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	patch := bson.M{}
	if body.Review != nil {
		patch["review"] = *body.Review
	}
	if body.Rating != nil {
		patch["rating"] = *body.Rating
	}
	if len(patch) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	return patch, nil
}
