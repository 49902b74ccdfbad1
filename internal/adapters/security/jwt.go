package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

// KindConfig is the per-kind signing envelope.
// Every kind carries its own secret so a token can never verify under
// another kind's key, on top of the embedded type discriminator.
type KindConfig struct {
	Secret   []byte
	TTL      time.Duration
	Audience string
	Issuer   string
}

// TokenAuthority implements HS256 signing/verification for all six token
// kinds. It is a pure function of its inputs and the clock; no I/O.
type TokenAuthority struct {
	kinds  map[domain.TokenKind]KindConfig
	leeway time.Duration
	nowFn  func() time.Time
}

// NewTokenAuthority validates the per-kind configuration up front so
// misconfigured kinds fail at bootstrap rather than on the first request.
func NewTokenAuthority(kinds map[domain.TokenKind]KindConfig) (*TokenAuthority, error) {
	if len(kinds) == 0 {
		return nil, errors.New("token authority requires at least one kind config")
	}
	for kind, cfg := range kinds {
		if len(cfg.Secret) == 0 {
			return nil, fmt.Errorf("token kind %s: secret is required", kind)
		}
		if cfg.TTL <= 0 {
			return nil, fmt.Errorf("token kind %s: ttl must be positive", kind)
		}
		if cfg.Audience == "" || cfg.Issuer == "" {
			return nil, fmt.Errorf("token kind %s: audience and issuer are required", kind)
		}
	}
	return &TokenAuthority{
		kinds:  kinds,
		leeway: 30 * time.Second,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the authority clock. Tests use this to cross expiry
// boundaries without sleeping.
func (a *TokenAuthority) WithClock(nowFn func() time.Time) *TokenAuthority {
	a.nowFn = nowFn
	return a
}

type tokenClaims struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

func (a *TokenAuthority) Sign(kind domain.TokenKind, payload domain.TokenPayload, opts ports.SignOptions) (ports.SignedToken, error) {
	cfg, ok := a.kinds[kind]
	if !ok {
		return ports.SignedToken{}, fmt.Errorf("token kind %s is not configured", kind)
	}
	if payload.Kind() != kind {
		return ports.SignedToken{}, fmt.Errorf("payload kind %s does not match requested kind %s", payload.Kind(), kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ports.SignedToken{}, fmt.Errorf("marshal token payload: %w", err)
	}

	jti := opts.JTI
	if jti == "" {
		jti = uuid.NewString()
	}

	now := a.nowFn()
	expiresAt := now.Add(cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: string(kind),
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   opts.Subject,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	raw, err := token.SignedString(cfg.Secret)
	if err != nil {
		return ports.SignedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return ports.SignedToken{
		Raw:       raw,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify decodes and validates raw against the configuration for kind.
// A well-signed token that is merely past exp comes back with Expired=true
// and a nil error so callers can run the renewal flow; any other failure is
// domain.ErrTokenInvalid.
func (a *TokenAuthority) Verify(kind domain.TokenKind, raw string) (ports.VerifiedToken, error) {
	cfg, ok := a.kinds[kind]
	if !ok {
		return ports.VerifiedToken{}, fmt.Errorf("%w: kind %s is not configured", domain.ErrTokenInvalid, kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.nowFn),
	)

	claims := &tokenClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return cfg.Secret, nil
	})

	expired := false
	if err != nil {
		if !isExpiryOnly(err) {
			return ports.VerifiedToken{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
		}
		expired = true
	}

	if claims.Type != string(kind) {
		return ports.VerifiedToken{}, fmt.Errorf("%w: token type %q does not match %s", domain.ErrTokenInvalid, claims.Type, kind)
	}
	payload, err := domain.DecodeTokenPayload(kind, claims.Data)
	if err != nil {
		return ports.VerifiedToken{}, err
	}

	out := ports.VerifiedToken{
		Kind:    kind,
		Payload: payload,
		JTI:     claims.ID,
		Subject: claims.Subject,
		Expired: expired,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

func (a *TokenAuthority) TTL(kind domain.TokenKind) time.Duration {
	return a.kinds[kind].TTL
}

// isExpiryOnly reports whether the joined parse error is exclusively an exp
// violation. The jwt library signs first and joins claim errors, so any of
// the listed conditions means the token is bad regardless of expiry.
func isExpiryOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, hard := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
	} {
		if errors.Is(err, hard) {
			return false
		}
	}
	return true
}
