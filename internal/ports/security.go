package ports

import (
	"time"

	"github.com/loginforge/authd/internal/domain"
)

// PasswordHasher is the adaptive salted-hash port for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// SignOptions carries the optional standard-claim overrides for Sign.
// An empty JTI lets the authority generate one; login flows pre-generate
// the refresh jti so the session row can record it.
type SignOptions struct {
	Subject string
	JTI     string
}

// SignedToken is the issued compact token plus the claims callers persist.
type SignedToken struct {
	Raw       string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifiedToken is the decoded result of a verification.
// Expired=true with a nil error means the token was well-signed but past its
// exp; callers decide whether that is recoverable (access renewal) or final.
type VerifiedToken struct {
	Kind      domain.TokenKind
	Payload   domain.TokenPayload
	JTI       string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Expired   bool
}

// TokenAuthority signs and verifies the six token kinds with per-kind
// secrets, TTLs, and audience/issuer pairs.
type TokenAuthority interface {
	Sign(kind domain.TokenKind, payload domain.TokenPayload, opts SignOptions) (SignedToken, error)
	Verify(kind domain.TokenKind, raw string) (VerifiedToken, error)
	TTL(kind domain.TokenKind) time.Duration
}

// OpaqueCipher wraps signed tokens in a symmetric cipher before they are
// placed in links or cookies, and provides the keyed-hash compare used where
// a raw shared-secret comparison suffices.
type OpaqueCipher interface {
	EncryptOpaque(plaintext string) (string, error)
	DecryptOpaque(ciphertext string) (string, error)
	KeyedHash(value string) string
	HashEquals(a, b string) bool
}

// OTPProvider is the time-based one-time-code port.
type OTPProvider interface {
	Enroll(account string) (secret, otpauthURL string, err error)
	ProvisioningURL(secret, account string) string
	Validate(code, secret string) bool
}
