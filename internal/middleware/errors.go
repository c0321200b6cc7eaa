package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/proptrack/internal/domain/dto"
)

// ErrorHandler turns errors attached with c.Error into a JSON response when
// the handler did not write one itself. The response is a 500 with the last
// error as details.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	last := c.Errors.Last()
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", last.Err))
}

// AbortWithError records err on the context and responds with status and a
// dto.ErrorResponse.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}
