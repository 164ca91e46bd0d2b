package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"estatetoken/internal/logger"
	"estatetoken/internal/uuid"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestLogging tags each request with an ID and logs it with Zap once the
// handler chain completes. A valid incoming X-Request-ID is reused.
func RequestLogging() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if !uuid.IsValid(requestID) {
			requestID = uuid.New()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if userID := c.GetString(userIDKey); userID != "" {
			fields = append(fields, "user_id", userID)
		}
		log.Infow("request", fields...)
	}
}

// RequestID returns the ID assigned by RequestLogging, or "" outside it.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
