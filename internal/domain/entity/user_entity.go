package entity

import (
	"time"
)

// User is the aggregate root for the identity domain.
// Passwords are stored as bcrypt hashes in PasswordHash.
type User struct {
	ID                        int64
	Username                  string
	Email                     string
	PasswordHash              string
	College                   string
	Semester                  int
	DefaultPaymentMethod      string
	IsVerified                bool
	VerificationCode          *string
	VerificationCodeCreatedAt *time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// HasOutstandingCode reports whether a verification code is waiting to be consumed.
func (u *User) HasOutstandingCode() bool {
	return u.VerificationCode != nil && *u.VerificationCode != ""
}

// SetVerificationCode stores a freshly issued code together with its issue time.
func (u *User) SetVerificationCode(code string, at time.Time) {
	u.VerificationCode = &code
	u.VerificationCodeCreatedAt = &at
}

// MarkVerified flips the verified flag and clears the one-time code.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.VerificationCode = nil
	u.VerificationCodeCreatedAt = nil
}
