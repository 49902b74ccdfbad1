package application

import (
	"time"

	"github.com/loginforge/authd/internal/ports"
)

// Config is the explicit tuning surface for the auth engine.
// It is passed to the constructor; no component reads globals.
type Config struct {
	DefaultRoles         []string
	SessionTTL           time.Duration
	SessionAbsoluteTTL   time.Duration
	FailedLoginThreshold int
	LockoutWindow        time.Duration
	OTPCodeLength        int
}

// Dependencies enumerates every port the service needs.
// Keeping them in one struct makes test fixtures and bootstrap wiring symmetric.
type Dependencies struct {
	Config Config

	Users         ports.UserRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
	Idempotency   ports.IdempotencyRepository

	Lockouts    ports.LockoutStore
	Revocations ports.SessionRevocationStore
	OTPIssuance ports.OTPIssuanceStore

	Hasher PasswordHasher
	Tokens TokenAuthority
	Cipher OpaqueCipher
	OTP    OTPProvider

	NowFn func() time.Time
}

// Port aliases keep the dependency struct readable without an import cycle.
type (
	PasswordHasher = ports.PasswordHasher
	TokenAuthority = ports.TokenAuthority
	OpaqueCipher   = ports.OpaqueCipher
	OTPProvider    = ports.OTPProvider
)

// Service implements the authentication and session-lifecycle use-cases.
type Service struct {
	cfg Config

	users         ports.UserRepository
	sessions      ports.SessionRepository
	loginAttempts ports.LoginAttemptRepository
	outbox        ports.OutboxRepository
	idempotency   ports.IdempotencyRepository

	lockouts    ports.LockoutStore
	revocations ports.SessionRevocationStore
	otpIssuance ports.OTPIssuanceStore

	hasher ports.PasswordHasher
	tokens ports.TokenAuthority
	cipher ports.OpaqueCipher
	otp    ports.OTPProvider

	nowFn func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if len(cfg.DefaultRoles) == 0 {
		cfg.DefaultRoles = []string{"USER"}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.SessionAbsoluteTTL <= 0 {
		cfg.SessionAbsoluteTTL = 90 * 24 * time.Hour
	}
	if cfg.FailedLoginThreshold <= 0 {
		cfg.FailedLoginThreshold = 10
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = 10 * time.Minute
	}
	if cfg.OTPCodeLength <= 0 {
		cfg.OTPCodeLength = 6
	}
	nowFn := deps.NowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		cfg:           cfg,
		users:         deps.Users,
		sessions:      deps.Sessions,
		loginAttempts: deps.LoginAttempts,
		outbox:        deps.Outbox,
		idempotency:   deps.Idempotency,
		lockouts:      deps.Lockouts,
		revocations:   deps.Revocations,
		otpIssuance:   deps.OTPIssuance,
		hasher:        deps.Hasher,
		tokens:        deps.Tokens,
		cipher:        deps.Cipher,
		otp:           deps.OTP,
		nowFn:         nowFn,
	}
}
