package domain

import (
	"time"

	"github.com/google/uuid"
)

// MFAConfig is the second-factor state carried on the user aggregate.
// Secrets and outstanding OTP tokens are stored encrypted; the engine
// decrypts them only at verification time.
type MFAConfig struct {
	Enabled             bool
	TOTPSecretEncrypted string
	OTPTokenEncrypted   string
}

// User is the canonical authentication identity aggregate.
// It keeps only auth-relevant state; profile and billing data live elsewhere.
type User struct {
	UserID         uuid.UUID
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	Roles          []string
	EmailVerified  bool
	IsActive       bool
	MFA            MFAConfig
	LastLoginAt    *time.Time
	LastLoginIP    string
	LoginAttemptAt *time.Time
	LoginAttemptIP string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session models one login event. A user may hold many concurrent sessions.
// RefreshTokenJTI binds the session to exactly one refresh-token lineage:
// a presented refresh token whose jti differs is rejected outright.
// Sign-out disables the row, it never deletes it.
type Session struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	RefreshTokenJTI string
	FingerprintHash string
	DeviceName      string
	DeviceOS        string
	IPAddress       string
	UserAgent       string
	IsActive        bool
	CreatedAt       time.Time
	LastActivityAt  time.Time
	ExpiresAt       time.Time
}

// LoginAttempt records authentication outcomes for audit and history endpoints.
type LoginAttempt struct {
	ID            int64
	UserID        *uuid.UUID
	AttemptAt     time.Time
	IPAddress     string
	Status        string
	FailureReason string
	DeviceName    string
	DeviceOS      string
	UserAgent     string
}
