package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser    = "user"
	RoleSponsor = "sponsor"
	RoleAdmin   = "admin"
)

// User is a platform account. Sponsors pay for ads out of WalletBalance.
type User struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	Username      string          `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email         string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string          `gorm:"not null" json:"-"`
	Role          string          `gorm:"size:16;not null;default:user" json:"role"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0" json:"wallet_balance"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
