package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key the response envelope reads the
// request ID from.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an ID, keeping one supplied by
// the caller so client retries of a lifecycle call correlate in the logs.
// The ID echoes back in the X-Request-ID header and in the metadata block of
// every envelope.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
