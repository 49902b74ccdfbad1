package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenKindConfig is the per-kind signing envelope: one secret, one TTL, one
// audience/issuer pair per token category.
type TokenKindConfig struct {
	Secret   string
	TTL      time.Duration
	Audience string
	Issuer   string
}

// Config is the resolved runtime configuration for the auth service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	// Per-kind token secrets. Empty secrets are filled with random material
	// when AllowEphemeralSecrets is set; production deployments must pin them.
	AccessToken         TokenKindConfig
	RefreshToken        TokenKindConfig
	VerificationToken   TokenKindConfig
	ForgotPasswordToken TokenKindConfig
	MfaGateToken        TokenKindConfig
	MfaOtpToken         TokenKindConfig

	CipherKeyHex          string
	CipherIVHex           string
	AllowEphemeralSecrets bool

	BcryptCost int
	TOTPIssuer string

	DefaultRoles         []string
	SessionTTL           time.Duration
	SessionAbsoluteTTL   time.Duration
	LockoutWindow        time.Duration
	FailedThreshold      int
	OTPCodeLength        int

	MaxDBConns           int32
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxClaimTTL       time.Duration
	OutboxMaxRetries     int
	OutboxStream         string
	EventStreamEnabled   bool
	SessionSweepInterval time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Tokens struct {
		Issuer    string `yaml:"issuer"`
		Audiences struct {
			Access         string `yaml:"access"`
			Refresh        string `yaml:"refresh"`
			Verification   string `yaml:"verification"`
			ForgotPassword string `yaml:"forgot_password"`
			MfaGate        string `yaml:"mfa_gate"`
			MfaOtp         string `yaml:"mfa_otp"`
		} `yaml:"audiences"`
	} `yaml:"tokens"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	const issuer = "authd"
	cfg := Config{
		ServiceID:             "authd",
		HTTPPort:              8080,
		GRPCPort:              9090,
		AllowEphemeralSecrets: true,
		BcryptCost:            12,
		TOTPIssuer:            "authd",
		DefaultRoles:          []string{"USER"},
		SessionTTL:            30 * 24 * time.Hour,
		SessionAbsoluteTTL:    90 * 24 * time.Hour,
		LockoutWindow:         10 * time.Minute,
		FailedThreshold:       10,
		OTPCodeLength:         6,
		MaxDBConns:            20,
		OutboxPollInterval:    2 * time.Second,
		OutboxBatchSize:       100,
		OutboxClaimTTL:        30 * time.Second,
		OutboxMaxRetries:      5,
		OutboxStream:          "authd:events",
		EventStreamEnabled:    true,
		SessionSweepInterval:  time.Hour,

		AccessToken:         TokenKindConfig{TTL: 15 * time.Minute, Audience: "authd:access", Issuer: issuer},
		RefreshToken:        TokenKindConfig{TTL: 30 * 24 * time.Hour, Audience: "authd:refresh", Issuer: issuer},
		VerificationToken:   TokenKindConfig{TTL: 24 * time.Hour, Audience: "authd:verification", Issuer: issuer},
		ForgotPasswordToken: TokenKindConfig{TTL: time.Hour, Audience: "authd:forgot-password", Issuer: issuer},
		MfaGateToken:        TokenKindConfig{TTL: 10 * time.Minute, Audience: "authd:mfa-gate", Issuer: issuer},
		MfaOtpToken:         TokenKindConfig{TTL: 5 * time.Minute, Audience: "authd:mfa-otp", Issuer: issuer},
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Tokens.Issuer != "" {
			for _, t := range []*TokenKindConfig{
				&cfg.AccessToken, &cfg.RefreshToken, &cfg.VerificationToken,
				&cfg.ForgotPasswordToken, &cfg.MfaGateToken, &cfg.MfaOtpToken,
			} {
				t.Issuer = f.Tokens.Issuer
			}
		}
		if f.Tokens.Audiences.Access != "" {
			cfg.AccessToken.Audience = f.Tokens.Audiences.Access
		}
		if f.Tokens.Audiences.Refresh != "" {
			cfg.RefreshToken.Audience = f.Tokens.Audiences.Refresh
		}
		if f.Tokens.Audiences.Verification != "" {
			cfg.VerificationToken.Audience = f.Tokens.Audiences.Verification
		}
		if f.Tokens.Audiences.ForgotPassword != "" {
			cfg.ForgotPasswordToken.Audience = f.Tokens.Audiences.ForgotPassword
		}
		if f.Tokens.Audiences.MfaGate != "" {
			cfg.MfaGateToken.Audience = f.Tokens.Audiences.MfaGate
		}
		if f.Tokens.Audiences.MfaOtp != "" {
			cfg.MfaOtpToken.Audience = f.Tokens.Audiences.MfaOtp
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)

	cfg.AccessToken.Secret = envOrDefault("ACCESS_TOKEN_SECRET", cfg.AccessToken.Secret)
	cfg.RefreshToken.Secret = envOrDefault("REFRESH_TOKEN_SECRET", cfg.RefreshToken.Secret)
	cfg.VerificationToken.Secret = envOrDefault("VERIFICATION_TOKEN_SECRET", cfg.VerificationToken.Secret)
	cfg.ForgotPasswordToken.Secret = envOrDefault("FORGOT_PASSWORD_TOKEN_SECRET", cfg.ForgotPasswordToken.Secret)
	cfg.MfaGateToken.Secret = envOrDefault("MFA_GATE_TOKEN_SECRET", cfg.MfaGateToken.Secret)
	cfg.MfaOtpToken.Secret = envOrDefault("MFA_OTP_TOKEN_SECRET", cfg.MfaOtpToken.Secret)
	cfg.CipherKeyHex = envOrDefault("CIPHER_KEY_HEX", cfg.CipherKeyHex)
	cfg.CipherIVHex = envOrDefault("CIPHER_IV_HEX", cfg.CipherIVHex)
	cfg.AllowEphemeralSecrets = envBool("ALLOW_EPHEMERAL_SECRETS", cfg.AllowEphemeralSecrets)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.TOTPIssuer = envOrDefault("TOTP_ISSUER", cfg.TOTPIssuer)
	cfg.DefaultRoles = envCSV("DEFAULT_ROLES", cfg.DefaultRoles)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.OTPCodeLength = envInt("OTP_CODE_LENGTH", cfg.OTPCodeLength)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.AccessToken.TTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessToken.TTL.Minutes()))) * time.Minute
	cfg.RefreshToken.TTL = time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", int(cfg.RefreshToken.TTL.Hours()/24))) * 24 * time.Hour
	cfg.VerificationToken.TTL = time.Duration(envInt("VERIFICATION_TOKEN_TTL_HOURS", int(cfg.VerificationToken.TTL.Hours()))) * time.Hour
	cfg.ForgotPasswordToken.TTL = time.Duration(envInt("FORGOT_PASSWORD_TOKEN_TTL_MINUTES", int(cfg.ForgotPasswordToken.TTL.Minutes()))) * time.Minute
	cfg.MfaGateToken.TTL = time.Duration(envInt("MFA_GATE_TOKEN_TTL_MINUTES", int(cfg.MfaGateToken.TTL.Minutes()))) * time.Minute
	cfg.MfaOtpToken.TTL = time.Duration(envInt("MFA_OTP_TOKEN_TTL_MINUTES", int(cfg.MfaOtpToken.TTL.Minutes()))) * time.Minute

	cfg.SessionTTL = time.Duration(envInt("SESSION_EXPIRY_DAYS", int(cfg.SessionTTL.Hours()/24))) * 24 * time.Hour
	cfg.SessionAbsoluteTTL = time.Duration(envInt("SESSION_ABSOLUTE_DAYS", int(cfg.SessionAbsoluteTTL.Hours()/24))) * 24 * time.Hour
	cfg.LockoutWindow = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutWindow.Minutes()))) * time.Minute
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.OutboxStream = envOrDefault("OUTBOX_STREAM", cfg.OutboxStream)
	cfg.EventStreamEnabled = envBool("EVENT_STREAM_ENABLED", cfg.EventStreamEnabled)
	cfg.SessionSweepInterval = time.Duration(envInt("SESSION_SWEEP_MINUTES", int(cfg.SessionSweepInterval.Minutes()))) * time.Minute

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if err := cfg.fillEphemeralSecrets(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// fillEphemeralSecrets generates random token secrets and cipher material for
// local runs. A restart invalidates everything issued before it, which is
// acceptable only outside production.
func (c *Config) fillEphemeralSecrets() error {
	secrets := []*TokenKindConfig{
		&c.AccessToken, &c.RefreshToken, &c.VerificationToken,
		&c.ForgotPasswordToken, &c.MfaGateToken, &c.MfaOtpToken,
	}
	for _, t := range secrets {
		if t.Secret != "" {
			continue
		}
		if !c.AllowEphemeralSecrets {
			return fmt.Errorf("missing token secret for audience %s", t.Audience)
		}
		t.Secret = randomHex(32)
	}
	if c.CipherKeyHex == "" {
		if !c.AllowEphemeralSecrets {
			return fmt.Errorf("missing CIPHER_KEY_HEX")
		}
		c.CipherKeyHex = randomHex(32)
	}
	if c.CipherIVHex == "" {
		if !c.AllowEphemeralSecrets {
			return fmt.Errorf("missing CIPHER_IV_HEX")
		}
		c.CipherIVHex = randomHex(16)
	}
	return nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
