package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/dto"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/utils"
)

// BuildTour binds and validates tour input for the factory's create
// handler. The slug derives from the name; it is never client-supplied.
func BuildTour(c *gin.Context) (models.Tour, error) {
	var body dto.CreateTourDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		return models.Tour{}, apperr.Validation(err.Error())
	}

	return models.Tour{
		ID:             bson.NewObjectID(),
		Name:           body.Name,
		Slug:           utils.GenerateSlug(body.Name),
		Duration:       body.Duration,
		MaxGroupSize:   body.MaxGroupSize,
		Difficulty:     body.Difficulty,
		Price:          body.Price,
		RatingsAverage: 4.5,
		Summary:        body.Summary,
		Description:    body.Description,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// BuildTourPatch validates a partial update, recomputing the slug when
// the name changes.
func BuildTourPatch(c *gin.Context) (bson.M, error) {
	var body dto.UpdateTourDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	patch := bson.M{}
	if body.Name != nil {
		patch["name"] = *body.Name
		patch["slug"] = utils.GenerateSlug(*body.Name)
	}
	if body.Duration != nil {
		patch["duration"] = *body.Duration
	}
	if body.MaxGroupSize != nil {
		patch["maxGroupSize"] = *body.MaxGroupSize
	}
	if body.Difficulty != nil {
		patch["difficulty"] = *body.Difficulty
	}
	if body.Price != nil {
		patch["price"] = *body.Price
	}
	if body.Summary != nil {
		patch["summary"] = *body.Summary
	}
	if body.Description != nil {
		patch["description"] = *body.Description
	}
	if len(patch) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	return patch, nil
}
