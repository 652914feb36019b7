package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// bindJSON decodes the body into dst and writes the error response itself
// when that fails.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, "Payload too large. Increase server body size limit or send a smaller payload.")
		return false
	}
	fail(c, http.StatusBadRequest, "Invalid request body")
	return false
}
