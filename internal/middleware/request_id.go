// Package middleware holds the gin middleware shared by the API and the gateway.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the request id between gateway, API and client.
const HeaderRequestID = "X-Request-ID"

// RequestID reuses an incoming X-Request-ID or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Request.Header.Set(HeaderRequestID, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)

		c.Next()
	}
}
