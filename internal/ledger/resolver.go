package ledger

import (
	"strings"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/uuid"

	"gorm.io/gorm"
)

// Resolver turns a reference that may be either a UUID or a display code into
// the canonical primary key of one entity table. Business logic only ever
// locks and mutates rows by canonical key.
type Resolver struct {
	table    string
	notFound *apperrors.AppError
}

var (
	Users          = Resolver{table: "users", notFound: apperrors.ErrUserNotFound}
	Properties     = Resolver{table: "properties", notFound: apperrors.ErrPropertyNotFound}
	PropertyTokens = Resolver{table: "property_tokens", notFound: apperrors.ErrPropertyTokenNotFound}
	Investments    = Resolver{table: "investments", notFound: apperrors.ErrInvestmentNotFound}
)

// NormalizeDisplayCode canonicalizes a display code for lookup and storage.
func NormalizeDisplayCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve returns the canonical ID for ref, or the entity's not-found error.
func (r Resolver) Resolve(db *gorm.DB, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", r.notFound
	}

	q := db.Table(r.table)
	if id, err := uuid.Parse(ref); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("display_code = ?", NormalizeDisplayCode(ref))
	}

	var ids []string
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(ids) == 0 {
		return "", r.notFound
	}
	return ids[0], nil
}
