// Package handler contains the HTTP controller layer.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/apperr"
	"inventario-go/pkg/log"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is an internal error and is logged with its cause; the client
// only ever sees the category.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsUnavailable(err):
		log.Errorf("%s %s: backing store unavailable: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backing store unavailable, try again later"})
	default:
		log.Errorf("%s %s: internal error: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
