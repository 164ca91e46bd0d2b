package services

import (
	"context"
	"encoding/json"

	"estatetoken/internal/logger"
	"estatetoken/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Audit actions recorded by the HTTP layer.
const (
	AuditActionInvest         = "INVEST"
	AuditActionDistribute     = "DISTRIBUTE_REWARD"
	AuditActionCreateProperty = "CREATE_PROPERTY"
	AuditActionCreateToken    = "CREATE_PROPERTY_TOKEN"
	AuditActionResizeToken    = "RESIZE_PROPERTY_TOKEN"
	AuditActionRepriceToken   = "REPRICE_PROPERTY_TOKEN"
	AuditActionToggleToken    = "TOGGLE_PROPERTY_TOKEN"
)

// AuditEntry describes one committed write worth keeping for compliance.
type AuditEntry struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      map[string]interface{}
}

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Record stores entry. It runs after the audited write has committed, so a
// failure here is logged and never returned.
func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	row := &models.AuditLog{
		UserID:       entry.Actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
	}
	if entry.Changes != nil {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			s.log.Errorw("failed to marshal audit changes", "error", err, "action", entry.Action)
			data = []byte("{}")
		}
		row.Changes = string(data)
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.log.Errorw("failed to write audit entry",
			"error", err,
			"actor", entry.Actor,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"request_id", entry.RequestID,
		)
	}
}
