package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Tour struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string        `bson:"name" json:"name"`
	Slug            string        `bson:"slug" json:"slug"`
	Duration        int           `bson:"duration" json:"duration"`
	MaxGroupSize    int           `bson:"maxGroupSize" json:"maxGroupSize"`
	Difficulty      string        `bson:"difficulty" json:"difficulty"`
	Price           float64       `bson:"price" json:"price"`
	RatingsAverage  float64       `bson:"ratingsAverage" json:"ratingsAverage"`
	RatingsQuantity int           `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Summary         string        `bson:"summary" json:"summary"`
	Description     string        `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	Revision        int64         `bson:"revision,omitempty" json:"-"`
}
