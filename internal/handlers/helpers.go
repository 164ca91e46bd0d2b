package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/middleware"
	"estatetoken/internal/services"
)

// pipelineActor is recorded as the acting user for pipeline audit entries.
const pipelineActor = "pipeline"

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// pathRef returns a path parameter holding a UUID or display code.
func pathRef(c *gin.Context, param string) (string, error) {
	ref := strings.TrimSpace(c.Param(param))
	if ref == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return ref, nil
}

// bindError converts a binding failure into INVALID_INPUT.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// auditEntry fills the request-scoped fields of an audit entry.
func auditEntry(c *gin.Context, actor, action, resourceType, resourceID string, changes map[string]interface{}) services.AuditEntry {
	return services.AuditEntry{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    c.ClientIP(),
		RequestID:    middleware.RequestID(c),
		Changes:      changes,
	}
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}
