package repository

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func afterUpdate() *options.FindOneAndUpdateOptionsBuilder {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func afterFindProjection(projection bson.M) []options.Lister[options.FindOneOptions] {
	if projection == nil {
		return nil
	}
	return []options.Lister[options.FindOneOptions]{
		options.FindOne().SetProjection(projection),
	}
}
