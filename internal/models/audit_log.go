package models

// AuditLog records settlement and inventory-admin operations for compliance.
// UserID is the acting user, or "pipeline" for key-authenticated calls.
type AuditLog struct {
	Base
	UserID       string `gorm:"index" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	RequestID    string `json:"request_id,omitempty"`
	Changes      string `json:"changes,omitempty"`
}
