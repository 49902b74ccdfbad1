package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LockoutState is the current brute-force envelope for a login key.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// LockoutStore handles short-lived brute-force protection state.
// RecordFailure must be a storage-level atomic increment so concurrent failed
// logins for the same key cannot under-count the threshold.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}

// SessionRevocationStore keeps revocation markers with token-aligned TTL.
// It is a fast-path check in front of the session-row join, not a replacement
// for it.
type SessionRevocationStore interface {
	MarkRevoked(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// OTPIssuanceStore serializes email-OTP issuance per user.
// Claim is compare-and-swap (set-if-absent with TTL): exactly one of several
// concurrent requests wins the right to mint a new code for the window.
type OTPIssuanceStore interface {
	Claim(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID uuid.UUID) error
}
