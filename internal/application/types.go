package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
)

// Cookie names the HTTP adapter materializes. All carry HttpOnly; Secure; Path=/.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieFingerprint  = "fingerprint"
	CookieMfaGate      = "mfa_gate"
)

// CookieDirective tells the transport layer what to set (MaxAge > 0) or
// clear (MaxAge < 0). The directive form keeps cookie policy out of the core.
type CookieDirective struct {
	Name   string
	Value  string
	MaxAge int
}

func setCookie(name, value string, ttl time.Duration) CookieDirective {
	return CookieDirective{Name: name, Value: value, MaxAge: int(ttl.Seconds())}
}

func clearCookie(name string) CookieDirective {
	return CookieDirective{Name: name, MaxAge: -1}
}

// ClearAuthCookies is the directive set for the forced-logout response class.
func ClearAuthCookies() []CookieDirective {
	return []CookieDirective{
		clearCookie(CookieAccessToken),
		clearCookie(CookieRefreshToken),
		clearCookie(CookieFingerprint),
		clearCookie(CookieMfaGate),
	}
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
}

type RegisterResponse struct {
	UserID            uuid.UUID `json:"user_id"`
	VerificationToken string    `json:"verification_token"`
}

type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint"`
	DeviceName  string `json:"device_name"`
	DeviceOS    string `json:"device_os"`
	IPAddress   string `json:"-"`
	UserAgent   string `json:"-"`
}

// LoginResponse is the split response shape: MFA-gated logins carry only the
// gate token and no session identifiers.
type LoginResponse struct {
	MfaRequired  bool              `json:"mfa_required"`
	MfaGateToken string            `json:"mfa_gate_token,omitempty"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	SessionID    uuid.UUID         `json:"session_id,omitempty"`
	ExpiresIn    int64             `json:"expires_in,omitempty"`
	Cookies      []CookieDirective `json:"-"`
}

// MFACompleteRequest finishes an MFA-gated login.
type MFACompleteRequest struct {
	GateToken   string `json:"gate_token"`
	Code        string `json:"code"`
	Method      string `json:"method"`
	Fingerprint string `json:"fingerprint"`
	DeviceName  string `json:"device_name"`
	DeviceOS    string `json:"device_os"`
	IPAddress   string `json:"-"`
	UserAgent   string `json:"-"`
}

// AuthContext is the verified identity attached to a protected request.
// RenewedAccessCookie is non-nil when the sliding renewal minted a fresh
// access token during verification.
type AuthContext struct {
	User                domain.User
	Session             domain.Session
	RenewedAccessToken  string
	RenewedAccessCookie *CookieDirective
}

type RefreshResponse struct {
	AccessToken string            `json:"access_token"`
	ExpiresIn   int64             `json:"expires_in"`
	Cookies     []CookieDirective `json:"-"`
}

type TOTPEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// EmailOTPResponse reports whether an outstanding code was reused.
// CodeAlreadyIssued mirrors the idempotent re-request guarantee.
type EmailOTPResponse struct {
	Token             string    `json:"token"`
	CodeAlreadyIssued bool      `json:"code_already_issued"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type OTPVerification struct {
	OK            bool          `json:"ok"`
	TimeRemaining time.Duration `json:"time_remaining"`
}

type PasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type SessionItem struct {
	SessionID      uuid.UUID `json:"session_id"`
	DeviceName     string    `json:"device_name"`
	DeviceOS       string    `json:"device_os"`
	IPAddress      string    `json:"ip_address"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsCurrent      bool      `json:"is_current"`
}

type LoginHistoryQuery struct {
	Page   int
	Limit  int
	Days   int
	Status string
}

type LoginHistoryItem struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	DeviceName    string    `json:"device_name,omitempty"`
	DeviceOS      string    `json:"device_os,omitempty"`
}

func toSessionItem(s domain.Session, currentSessionID uuid.UUID) SessionItem {
	return SessionItem{
		SessionID:      s.SessionID,
		DeviceName:     s.DeviceName,
		DeviceOS:       s.DeviceOS,
		IPAddress:      s.IPAddress,
		IsActive:       s.IsActive,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		IsCurrent:      s.SessionID == currentSessionID,
	}
}
