package models

// User is the owner of a wallet and of investments. Users are provisioned by
// the identity service; this core only reads them.
type User struct {
	Base
	DisplayCode string `gorm:"uniqueIndex;not null" json:"display_code"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}
