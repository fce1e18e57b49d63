package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/davrell/trekbackend/query"
	"github.com/davrell/trekbackend/repository"
)

// AmbientFilter scopes a listing to a parent resource, e.g. the reviews
// of one tour. A nil extractor or nil result means an unscoped list.
type AmbientFilter func(c *gin.Context) bson.M

// CreateOne returns a handler inserting the document produced by build.
// Entity-specific behavior belongs in the repository or in build; the
// factory treats every type the same way.
func CreateOne[T any](repo repository.Repository[T], build func(c *gin.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := build(c)
		if err != nil {
			respondError(c, err)
			return
		}
		created, err := repo.Create(c.Request.Context(), doc)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, gin.H{"data": created})
	}
}

// GetOne loads a document by the :id route parameter. The optional
// populate hints are passed through to the repository.
func GetOne[T any](repo repository.Repository[T], populate ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := repo.FindByID(c.Request.Context(), c.Param("id"), populate...)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{"data": doc})
	}
}

// UpdateOne applies the patch produced by build to the document behind
// :id and returns the post-image.
func UpdateOne[T any](repo repository.Repository[T], build func(c *gin.Context) (bson.M, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, err := build(c)
		if err != nil {
			respondError(c, err)
			return
		}
		updated, err := repo.UpdateByID(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{"data": updated})
	}
}

// DeleteOne removes the document behind :id. This is a hard delete;
// flows that need soft deletion (user self-deletion) have their own
// handlers and do not route through the factory.
func DeleteOne[T any](repo repository.Repository[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := repo.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetAll lists documents through a query plan built from the request
// parameters, optionally scoped by an ambient filter.
func GetAll[T any](repo repository.Repository[T], ambient AmbientFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan := query.Build(c.Request.URL.Query())

		var scope bson.M
		if ambient != nil {
			scope = ambient(c)
		}

		docs, err := repo.FindMany(c.Request.Context(), plan, scope)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{
			"results": len(docs),
			"data":    docs,
		})
	}
}
