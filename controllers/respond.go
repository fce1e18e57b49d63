// Package controllers holds the HTTP handlers. Handlers bind and
// validate input, call the service and repository layers, and render the
// uniform response envelope; business rules live below them.
package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davrell/trekbackend/apperr"
)

func respondData(c *gin.Context, status int, data gin.H) {
	body := gin.H{"status": "success"}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondError maps a taxonomy error to its HTTP response. Anything
// outside the taxonomy is logged with its cause and rendered as a
// generic 500 so store internals never leak.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(),
			"requestID", c.GetString("requestID"),
			"error", err,
		)
	}

	kind := "fail"
	if status >= http.StatusInternalServerError {
		kind = "error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status":  kind,
		"message": apperr.Message(err),
	})
}

func respondValidation(c *gin.Context, err error) {
	respondError(c, apperr.Validation(err.Error()))
}
