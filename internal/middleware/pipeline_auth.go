package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/logger"
)

const apiKeyHeader = "X-API-Key"

// PipelineAuthMiddleware validates the X-API-Key header used by the candle
// scheduler, reward feeds and inventory tooling. keys may hold several
// comma-separated values so a key can be rotated without downtime. Pipeline
// routes are disabled while no key is configured.
func PipelineAuthMiddleware(keys string) gin.HandlerFunc {
	accepted := splitKeys(keys)
	log := logger.Named("pipeline")

	return func(c *gin.Context) {
		if len(accepted) == 0 {
			AbortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		if !matchesAny(c.GetHeader(apiKeyHeader), accepted) {
			log.Warnw("rejected pipeline request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			AbortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}

func splitKeys(keys string) [][]byte {
	var out [][]byte
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// matchesAny compares against every key so timing does not reveal which one
// matched.
func matchesAny(presented string, accepted [][]byte) bool {
	match := 0
	for _, k := range accepted {
		match |= subtle.ConstantTimeCompare([]byte(presented), k)
	}
	return match == 1
}
