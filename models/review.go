package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Review struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string        `bson:"review" json:"review"`
	Rating    float64       `bson:"rating" json:"rating"`
	Tour      bson.ObjectID `bson:"tour" json:"tour"`
	User      bson.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	Revision  int64         `bson:"revision,omitempty" json:"-"`
}
