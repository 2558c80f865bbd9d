// Package middleware holds request-scoped gin middleware owned by the API server.
package middleware

import (
	"context"
	"strings"

	"workorders_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the request correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 64

// RequestID reuses a caller supplied X-Request-ID or mints a new one, echoes
// it on the response and stores it on the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		c.Header(HeaderRequestID, requestID)
		c.Set(string(logger.RequestIDKey), requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
