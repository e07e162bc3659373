package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storelink/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects requests whose declared body size exceeds maxBytes and
// caps streaming bodies with a MaxBytesReader so chunked uploads cannot
// bypass the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
