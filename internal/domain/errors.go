package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain lets adapters map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUserNotFound distinguishes an absent identity from other lookup failures.
	// Login surfaces it as ErrInvalidCredentials to avoid enumeration side channels.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound covers disabled, expired, and missing sessions alike.
	// It maps to the service-unavailable class that forces clients to drop auth cookies.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts signals temporary lockout after repeated failed logins.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrTokenExpired is the only recoverable token failure. Access tokens get one
	// renewal attempt against the refresh token; every other kind treats it as final.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers signature, format, audience, issuer, and kind failures.
	// It must never be collapsed into ErrTokenExpired.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrMfaCodeInvalid is returned for wrong TOTP or email-OTP codes. The user may retry.
	ErrMfaCodeInvalid = errors.New("mfa code invalid")
	// ErrMfaTokenMismatch signals a token of the wrong kind or binding in an MFA flow.
	ErrMfaTokenMismatch = errors.New("mfa token mismatch")
	// ErrEncryptionFailure is an internal fault in the opaque-token cipher layer.
	ErrEncryptionFailure = errors.New("encryption failure")
	// ErrWeakPassword rejects credentials that fail the password policy.
	ErrWeakPassword = errors.New("weak password")

	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrRateLimited         = errors.New("rate limited")
)
