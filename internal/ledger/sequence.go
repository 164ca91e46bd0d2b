package ledger

import (
	"fmt"

	apperrors "estatetoken/internal/errors"

	"gorm.io/gorm"
)

// Kind identifies one display-code sequence.
type Kind string

const (
	KindInvestment   Kind = "investment"
	KindTransaction  Kind = "transaction"
	KindUser         Kind = "user"
	KindProperty     Kind = "property"
	KindOrganization Kind = "organization"
	KindReward       Kind = "reward"
)

var prefixes = map[Kind]string{
	KindInvestment:   "INV",
	KindTransaction:  "TXN",
	KindUser:         "USR",
	KindProperty:     "PROP",
	KindOrganization: "ORG",
	KindReward:       "RWD",
}

// Prefix returns the display-code prefix for the kind.
func (k Kind) Prefix() string {
	return prefixes[k]
}

// FormatDisplayCode renders a sequence value as PREFIX-NNNNNN.
func FormatDisplayCode(kind Kind, n int64) string {
	return fmt.Sprintf("%s-%06d", kind.Prefix(), n)
}

// The upsert takes the row lock on the kind, so concurrent allocators in
// other transactions wait and then observe the incremented value.
const nextValueSQL = `INSERT INTO display_sequences (kind, value) VALUES (?, 1)
ON CONFLICT (kind) DO UPDATE SET value = display_sequences.value + 1
RETURNING value`

// NextValue atomically increments and returns the counter for kind. It must
// run on the caller's transaction so a rollback releases the value.
func NextValue(tx *gorm.DB, kind Kind) (int64, error) {
	if _, ok := prefixes[kind]; !ok {
		return 0, apperrors.WithMessage(apperrors.ErrInternalServer, "unknown sequence kind "+string(kind))
	}
	var value int64
	if err := tx.Raw(nextValueSQL, string(kind)).Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

// NextDisplayCode allocates the next display code for kind.
func NextDisplayCode(tx *gorm.DB, kind Kind) (string, error) {
	n, err := NextValue(tx, kind)
	if err != nil {
		return "", err
	}
	return FormatDisplayCode(kind, n), nil
}
