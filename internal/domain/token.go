package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TokenKind discriminates the six token categories the engine issues.
// Each kind is signed with its own secret and verified against its own
// audience/issuer pair, so a token of one kind can never be replayed as another.
type TokenKind string

const (
	TokenKindAccess         TokenKind = "ACCESS"
	TokenKindRefresh        TokenKind = "REFRESH"
	TokenKindVerification   TokenKind = "VERIFICATION"
	TokenKindForgotPassword TokenKind = "FORGOT_PASSWORD"
	TokenKindMfaAuthGate    TokenKind = "MFA_AUTH_GATE"
	TokenKindMfaOtp         TokenKind = "MFA_OTP"
)

// Second-factor methods carried in MfaOtp payloads and MFA completion
// requests. Anything else is rejected.
const (
	OTPMethodEmail = "EMAIL"
	OTPMethodTOTP  = "TOTP"
)

// TokenPayload is the tagged union of per-kind claim payloads.
// Decoding is exhaustive over TokenKind with a default-reject branch;
// verifiers never branch on a raw type string.
type TokenPayload interface {
	Kind() TokenKind
}

// AccessPayload authorizes individual requests for one session.
type AccessPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	SessionID uuid.UUID `json:"session_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles,omitempty"`
}

func (AccessPayload) Kind() TokenKind { return TokenKindAccess }

// RefreshPayload mints new access tokens; its jti is bound to one session row.
type RefreshPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	SessionID uuid.UUID `json:"session_id"`
}

func (RefreshPayload) Kind() TokenKind { return TokenKindRefresh }

// VerificationPayload backs single-purpose account-verification links.
type VerificationPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

func (VerificationPayload) Kind() TokenKind { return TokenKindVerification }

// ForgotPasswordPayload backs single-purpose password-reset links.
type ForgotPasswordPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

func (ForgotPasswordPayload) Kind() TokenKind { return TokenKindForgotPassword }

// MfaGatePayload is the intermediate credential issued after a correct password
// but before MFA completion. It is not sufficient for protected access.
type MfaGatePayload struct {
	UserID          uuid.UUID `json:"user_id"`
	Email           string    `json:"email"`
	FingerprintHash string    `json:"fingerprint_hash,omitempty"`
}

func (MfaGatePayload) Kind() TokenKind { return TokenKindMfaAuthGate }

// MfaOtpPayload carries an emailed one-time numeric code inside a signed token
// instead of a separate store, so expiry and integrity ride on the signature.
type MfaOtpPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Method string    `json:"method"`
	Code   string    `json:"code"`
}

func (MfaOtpPayload) Kind() TokenKind { return TokenKindMfaOtp }

// DecodeTokenPayload unmarshals the raw data claim into the struct for kind.
// Unknown kinds are rejected rather than decoded into a loose map.
func DecodeTokenPayload(kind TokenKind, raw json.RawMessage) (TokenPayload, error) {
	switch kind {
	case TokenKindAccess:
		var p AccessPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode access payload", ErrTokenInvalid)
		}
		return p, nil
	case TokenKindRefresh:
		var p RefreshPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode refresh payload", ErrTokenInvalid)
		}
		return p, nil
	case TokenKindVerification:
		var p VerificationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode verification payload", ErrTokenInvalid)
		}
		return p, nil
	case TokenKindForgotPassword:
		var p ForgotPasswordPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode forgot-password payload", ErrTokenInvalid)
		}
		return p, nil
	case TokenKindMfaAuthGate:
		var p MfaGatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode mfa-gate payload", ErrTokenInvalid)
		}
		return p, nil
	case TokenKindMfaOtp:
		var p MfaOtpPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode mfa-otp payload", ErrTokenInvalid)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrTokenInvalid, string(kind))
	}
}
