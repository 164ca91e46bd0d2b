package middleware

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/logger"
)

// AbortWithError writes the JSON error envelope for err and aborts the chain.
// AppErrors are returned with their code and message; anything else is logged
// and reported as INTERNAL_ERROR so details never reach the client.
func AbortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", c.GetString(requestIDKey),
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error",
			"code", appErr.Code,
			"message", appErr.Message,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
		)
	}

	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

// ErrorHandler renders the last error attached with c.Error when no response
// has been written yet.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		AbortWithError(c, c.Errors.Last().Err)
	}
}

// Recovery converts a handler panic into an INTERNAL_ERROR response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Errorw("panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDKey),
				)
				AbortWithError(c, apperrors.ErrInternalServer)
			}
		}()
		c.Next()
	}
}
