// Package locking acquires exclusive row locks on inventory, wallet and
// portfolio-summary rows inside a caller's unit of work. Locks are always
// taken in one global order and are released only by commit or rollback.
package locking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind is a lockable entity type. The numeric value is the lock order.
type Kind int

const (
	KindProperty Kind = iota
	KindPropertyToken
	KindWallet
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "property"
	case KindPropertyToken:
		return "property_token"
	case KindWallet:
		return "wallet"
	case KindSummary:
		return "portfolio_summary"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Key names one row to lock by canonical ID. Wallet and summary keys use the
// owning user's ID.
type Key struct {
	Kind Kind
	ID   string
}

func Property(id string) Key      { return Key{Kind: KindProperty, ID: id} }
func PropertyToken(id string) Key { return Key{Kind: KindPropertyToken, ID: id} }
func Wallet(userID string) Key    { return Key{Kind: KindWallet, ID: userID} }
func Summary(userID string) Key   { return Key{Kind: KindSummary, ID: userID} }

// SortKeys orders keys by kind then ID and drops duplicates.
func SortKeys(keys []Key) []Key {
	sorted := make([]Key, 0, len(keys))
	seen := make(map[Key]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			sorted = append(sorted, k)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Manager acquires row locks with a bounded wait.
type Manager struct {
	timeout time.Duration
}

// NewManager creates a Manager. A zero timeout leaves the database default.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Set holds the rows loaded under lock, keyed by canonical ID.
type Set struct {
	properties map[string]*models.Property
	tokens     map[string]*models.PropertyToken
	wallets    map[string]*models.Wallet
	summaries  map[string]*models.PortfolioSummary
}

func (s *Set) Property(id string) *models.Property           { return s.properties[id] }
func (s *Set) PropertyToken(id string) *models.PropertyToken { return s.tokens[id] }
func (s *Set) Wallet(userID string) *models.Wallet           { return s.wallets[userID] }
func (s *Set) Summary(userID string) *models.PortfolioSummary {
	return s.summaries[userID]
}

// Acquire locks every key on tx in canonical order and returns the locked
// rows. Missing rows fail with the entity's not-found error; a lock wait that
// exceeds the timeout fails with LOCK_TIMEOUT. A missing summary row is
// created before it is locked.
func (m *Manager) Acquire(tx *gorm.DB, keys ...Key) (*Set, error) {
	if err := m.setLockTimeout(tx); err != nil {
		return nil, lockWaitError(err)
	}

	set := &Set{
		properties: make(map[string]*models.Property),
		tokens:     make(map[string]*models.PropertyToken),
		wallets:    make(map[string]*models.Wallet),
		summaries:  make(map[string]*models.PortfolioSummary),
	}

	for _, key := range SortKeys(keys) {
		if err := m.lock(tx, key, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (m *Manager) setLockTimeout(tx *gorm.DB) error {
	if m.timeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.timeout.Milliseconds())).Error
}

func (m *Manager) lock(tx *gorm.DB, key Key, set *Set) error {
	locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})

	switch key.Kind {
	case KindProperty:
		var p models.Property
		if err := locked.Where("id = ?", key.ID).First(&p).Error; err != nil {
			return notFoundOr(err, apperrors.ErrPropertyNotFound)
		}
		set.properties[key.ID] = &p
	case KindPropertyToken:
		var t models.PropertyToken
		if err := locked.Where("id = ?", key.ID).First(&t).Error; err != nil {
			return notFoundOr(err, apperrors.ErrPropertyTokenNotFound)
		}
		set.tokens[key.ID] = &t
	case KindWallet:
		var w models.Wallet
		if err := locked.Where("user_id = ?", key.ID).First(&w).Error; err != nil {
			return notFoundOr(err, apperrors.ErrWalletNotFound)
		}
		set.wallets[key.ID] = &w
	case KindSummary:
		seed := models.PortfolioSummary{
			UserID:            key.ID,
			TotalInvestedUSDT: decimal.Zero,
			TotalRewardsUSDT:  decimal.Zero,
			TotalROIUSDT:      decimal.Zero,
			LastUpdated:       time.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return Classify(err)
		}
		var s models.PortfolioSummary
		if err := locked.Where("user_id = ?", key.ID).First(&s).Error; err != nil {
			return lockWaitError(err)
		}
		set.summaries[key.ID] = &s
	default:
		return apperrors.WithMessage(apperrors.ErrInternalServer, "unknown lock kind "+key.Kind.String())
	}
	return nil
}

func notFoundOr(err error, notFound *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return lockWaitError(err)
}

// lockWaitError classifies a failure of a row-lock statement. A context
// deadline here means the wait for the row was abandoned.
func lockWaitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrLockTimeout, err)
	}
	return Classify(err)
}

// Postgres SQLSTATEs reported when a lock wait is abandoned.
const (
	sqlStateLockNotAvailable  = "55P03"
	sqlStateDeadlockDetected  = "40P01"
	sqliteBusyMessageFragment = "database is locked"
)

// IsLockTimeout reports whether err is a database lock-wait failure.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrLockTimeout) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateLockNotAvailable || pgErr.Code == sqlStateDeadlockDetected
	}
	return strings.Contains(err.Error(), sqliteBusyMessageFragment)
}

// Classify maps a raw database error to LOCK_TIMEOUT or INTERNAL_ERROR.
// AppErrors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsLockTimeout(err) {
		if errors.Is(err, apperrors.ErrLockTimeout) {
			return err
		}
		return apperrors.Wrap(apperrors.ErrLockTimeout, err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
