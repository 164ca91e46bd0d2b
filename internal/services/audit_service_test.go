package services

import (
	"context"
	"testing"

	"estatetoken/internal/models"
	"estatetoken/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestAuditRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)
	user := testutil.CreateTestUser(t, db)

	svc.Record(context.Background(), AuditEntry{
		Actor:        user.ID,
		Action:       AuditActionInvest,
		ResourceType: "investment",
		ResourceID:   "inv-1",
		IPAddress:    "10.0.0.1",
		RequestID:    "0192a8b4-0000-7000-8000-000000000001",
		Changes:      map[string]interface{}{"tokens": decimal.NewFromInt(20)},
	})

	var entry models.AuditLog
	if err := db.Where("user_id = ?", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected audit entry: %v", err)
	}
	if entry.Action != AuditActionInvest || entry.ResourceID != "inv-1" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.RequestID != "0192a8b4-0000-7000-8000-000000000001" {
		t.Errorf("expected request id to be kept, got %q", entry.RequestID)
	}
	if entry.Changes != `{"tokens":"20"}` {
		t.Errorf("unexpected changes %s", entry.Changes)
	}
}

func TestAuditRecord_PipelineActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	svc.Record(context.Background(), AuditEntry{Actor: "pipeline", Action: AuditActionRepriceToken, ResourceType: "property_token"})

	var entry models.AuditLog
	if err := db.Where("user_id = ?", "pipeline").First(&entry).Error; err != nil {
		t.Fatalf("expected pipeline audit entry: %v", err)
	}
	if entry.Changes != "" {
		t.Errorf("expected no changes, got %q", entry.Changes)
	}
}

func TestAuditRecord_FailureIsSwallowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewAuditService(db)
	testutil.TeardownTestDB(t, db)

	// Closed database: Record must not panic.
	svc.Record(context.Background(), AuditEntry{Actor: "u", Action: AuditActionInvest, ResourceType: "investment"})
}
