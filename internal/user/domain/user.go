// Package domain holds the core user entity. The user's OTP credential is embedded
// in the user row: at most one live code per user, overwritten on reissue and
// cleared on consumption.
package domain

import (
	"errors"
	"strings"
	"time"
)

// User is one account: identity fields plus the embedded OTP credential.
type User struct {
	ID            int64
	Name          string
	Email         string // unique
	Phone         string // unique
	Role          Role
	AccountStatus string // pending until first successful OTP verification
	ProfileStatus string
	OTP           string     // current code; empty when no live credential
	OTPExpiresAt  *time.Time // nil when no live credential
	OTPVerified   bool
	Latitude      *float64
	Longitude     *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Account status labels. Verification promotes pending → verified.
const (
	AccountStatusPending  = "pending"
	AccountStatusVerified = "verified"
)

const ProfileStatusActive = "active"

// NewCustomer returns a customer account for the given contact pair with the
// display name derived from the email's local part.
func NewCustomer(email, phone string) *User {
	now := time.Now().UTC()
	return &User{
		Name:          nameFromEmail(email),
		Email:         email,
		Phone:         phone,
		Role:          RoleCustomer,
		AccountStatus: AccountStatusPending,
		ProfileStatus: ProfileStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if u.AccountStatus == "" {
		u.AccountStatus = AccountStatusPending
	}
	return nil
}

// SetOTP installs a new credential, overwriting any prior one for this user.
func (u *User) SetOTP(code string, expiresAt time.Time) {
	u.OTP = code
	u.OTPExpiresAt = &expiresAt
	u.OTPVerified = false
	u.UpdatedAt = time.Now().UTC()
}

// HasLiveOTP reports whether the user holds a code that has not expired at now.
// A consumed credential has its code cleared, so it is never live.
func (u *User) HasLiveOTP(now time.Time) bool {
	return u.OTP != "" && u.OTPExpiresAt != nil && u.OTPExpiresAt.After(now)
}

// ConsumeOTP marks the credential verified, clears the code and expiry so it can
// never be replayed, and promotes the account status.
func (u *User) ConsumeOTP() {
	u.OTP = ""
	u.OTPExpiresAt = nil
	u.OTPVerified = true
	u.AccountStatus = AccountStatusVerified
	u.UpdatedAt = time.Now().UTC()
}

func nameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
