package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"estatetoken/internal/events"
	"estatetoken/internal/locking"
	"estatetoken/internal/models"

	"gorm.io/gorm"
)

func newTestBus() *events.Bus { return events.NewBus(2 * time.Second) }

func newTestLocks() *locking.Manager { return locking.NewManager(time.Second) }

// eventRecorder captures every event delivered on the topics it watches.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func recordTopics(bus *events.Bus, topics ...events.Topic) *eventRecorder {
	r := &eventRecorder{}
	for _, topic := range topics {
		bus.Subscribe(topic, "test.recorder", func(ctx context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
	return r
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func reloadWallet(t *testing.T, db *gorm.DB, userID string) *models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("failed to reload wallet: %v", err)
	}
	return &w
}

func reloadToken(t *testing.T, db *gorm.DB, id string) *models.PropertyToken {
	t.Helper()
	var tok models.PropertyToken
	if err := db.Where("id = ?", id).First(&tok).Error; err != nil {
		t.Fatalf("failed to reload property token: %v", err)
	}
	return &tok
}

func reloadProperty(t *testing.T, db *gorm.DB, id string) *models.Property {
	t.Helper()
	var p models.Property
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("failed to reload property: %v", err)
	}
	return &p
}

func reloadSummary(t *testing.T, db *gorm.DB, userID string) *models.PortfolioSummary {
	t.Helper()
	var s models.PortfolioSummary
	if err := db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		t.Fatalf("failed to reload portfolio summary: %v", err)
	}
	return &s
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func snapshotsFor(t *testing.T, db *gorm.DB, userID string) []models.PortfolioHistory {
	t.Helper()
	var rows []models.PortfolioHistory
	if err := db.Where("user_id = ?", userID).Order("recorded_at, id").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load snapshots: %v", err)
	}
	return rows
}
