package ops

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID tags every ops request with an identifier so probe requests can
// be matched to log lines. A client-supplied X-Request-ID is kept.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
