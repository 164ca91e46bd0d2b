package models

// DisplaySequence is the per-entity-kind counter behind display codes.
type DisplaySequence struct {
	Kind  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null;default:0"`
}
