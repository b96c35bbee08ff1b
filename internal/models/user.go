package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ErrRoleImmutable is returned when an update tries to change a user's role.
var ErrRoleImmutable = errors.New("user role cannot be changed")

// User is an admin or member account.
type User struct {
	BaseModel
	Name            string       `gorm:"not null" json:"name"`
	Email           string       `gorm:"uniqueIndex;not null" json:"email"`
	Phone           string       `json:"phone"`
	Role            string       `gorm:"index;not null" json:"role"`
	PasswordHash    string       `gorm:"not null" json:"-"`
	Avatar          string       `json:"avatar"`
	IsVerified      bool         `json:"is_verified"`
	EmailVerifiedAt *time.Time   `json:"email_verified_at"`
	OTP             *string      `gorm:"column:otp" json:"-"`
	OTPExpiresAt    *time.Time   `gorm:"column:otp_expires_at" json:"-"`
	IsApproved      bool         `json:"is_approved"`
	IsActive        bool         `gorm:"index" json:"is_active"`
	Institution     *Institution `gorm:"foreignKey:UserID" json:"institution,omitempty"`
}

// BeforeUpdate rejects role changes after creation.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("Role") {
		return ErrRoleImmutable
	}
	return nil
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SetOTP stores a one-time code together with its expiry.
func (u *User) SetOTP(code string, expiresAt time.Time) {
	u.OTP = &code
	u.OTPExpiresAt = &expiresAt
}

// ClearOTP removes both OTP fields.
func (u *User) ClearOTP() {
	u.OTP = nil
	u.OTPExpiresAt = nil
}

// OTPMatches reports whether code is the active, unexpired OTP.
func (u *User) OTPMatches(code string, now time.Time) bool {
	if u.OTP == nil || u.OTPExpiresAt == nil || code == "" {
		return false
	}
	return *u.OTP == code && now.Before(*u.OTPExpiresAt)
}

// OTPExpired reports whether an OTP is set but past its expiry.
func (u *User) OTPExpired(now time.Time) bool {
	return u.OTPExpiresAt != nil && !now.Before(*u.OTPExpiresAt)
}

// RevokedToken records logged-out JWT ids until they expire.
type RevokedToken struct {
	BaseModel
	TokenID   string    `gorm:"uniqueIndex;not null" json:"token_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
