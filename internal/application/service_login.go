package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

const (
	attemptStatusSuccess = "SUCCESS"
	attemptStatusFailed  = "FAILED"
	attemptStatusLocked  = "LOCKED"
)

func lockoutKey(email string) string { return "login:" + email }

// Login validates credentials under the lockout envelope. Accounts with MFA
// enabled receive an encrypted gate token and no session; everyone else gets
// a full session with access and refresh tokens.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}
	req.Email = email

	state, err := s.lockouts.Get(ctx, lockoutKey(email))
	if err != nil {
		svcLogger().WarnContext(ctx, "lockout lookup failed, continuing",
			"operation", "login",
			"outcome", "degraded",
			"error", err,
		)
	}
	now := s.nowFn()
	if state.LockedUntil != nil && state.LockedUntil.After(now) {
		s.recordAttempt(ctx, nil, req, attemptStatusLocked, "account locked")
		return LoginResponse{}, domain.ErrTooManyAttempts
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Burn a failure against the key so unknown emails cannot be
			// used to probe the lockout counter.
			_, _ = s.lockouts.RecordFailure(ctx, lockoutKey(email), now, s.cfg.FailedLoginThreshold, s.cfg.LockoutWindow)
			s.recordAttempt(ctx, nil, req, attemptStatusFailed, "unknown email")
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}
	if !user.IsActive {
		s.recordAttempt(ctx, &user.UserID, req, attemptStatusFailed, "account disabled")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, s.handleFailedPassword(ctx, user, req, now)
	}

	_ = s.lockouts.Clear(ctx, lockoutKey(email))

	if user.MFA.Enabled {
		return s.issueMfaGate(ctx, user, req)
	}
	return s.finishLogin(ctx, user, req)
}

func (s *Service) handleFailedPassword(ctx context.Context, user domain.User, req LoginRequest, now time.Time) error {
	if err := s.users.RecordFailedLogin(ctx, user.UserID, now, req.IPAddress); err != nil {
		svcLogger().WarnContext(ctx, "failed to record failed login on user row",
			"operation", "login",
			"outcome", "partial",
			"user_id", user.UserID,
			"error", err,
		)
	}
	// The failure that trips the threshold still answers with the
	// wrong-password error; only the NEXT attempt hits the lock.
	if _, err := s.lockouts.RecordFailure(ctx, lockoutKey(user.Email), now, s.cfg.FailedLoginThreshold, s.cfg.LockoutWindow); err != nil {
		svcLogger().WarnContext(ctx, "failed to record lockout failure",
			"operation", "login",
			"outcome", "degraded",
			"user_id", user.UserID,
			"error", err,
		)
	}
	s.recordAttempt(ctx, &user.UserID, req, attemptStatusFailed, "wrong password")
	return domain.ErrInvalidCredentials
}

func (s *Service) issueMfaGate(ctx context.Context, user domain.User, req LoginRequest) (LoginResponse, error) {
	gate, err := s.issueOpaqueToken(domain.TokenKindMfaAuthGate, domain.MfaGatePayload{
		UserID:          user.UserID,
		Email:           user.Email,
		FingerprintHash: s.cipher.KeyedHash(req.Fingerprint),
	}, user.UserID)
	if err != nil {
		return LoginResponse{}, err
	}
	s.recordAttempt(ctx, &user.UserID, req, attemptStatusSuccess, "password accepted, mfa pending")
	return LoginResponse{
		MfaRequired:  true,
		MfaGateToken: gate,
		Cookies: []CookieDirective{
			setCookie(CookieMfaGate, gate, s.tokens.TTL(domain.TokenKindMfaAuthGate)),
		},
	}, nil
}

// finishLogin records the successful attempt and establishes the session.
// It is shared by the MFA-off path and the MFA completion path.
func (s *Service) finishLogin(ctx context.Context, user domain.User, req LoginRequest) (LoginResponse, error) {
	resp, err := s.establishSession(ctx, user, req)
	if err != nil {
		return LoginResponse{}, err
	}

	now := s.nowFn()
	if err := s.users.RecordLastLogin(ctx, user.UserID, now, req.IPAddress); err != nil {
		svcLogger().WarnContext(ctx, "failed to record last login",
			"operation", "login",
			"outcome", "partial",
			"user_id", user.UserID,
			"error", err,
		)
	}
	s.recordAttempt(ctx, &user.UserID, req, attemptStatusSuccess, "")
	s.enqueueEvent(ctx, EventUserLogin, user.UserID.String(), map[string]any{
		"user_id":    user.UserID.String(),
		"session_id": resp.SessionID.String(),
		"ip_address": req.IPAddress,
		"device":     req.DeviceName,
		"login_at":   now.Format(time.RFC3339),
	})

	svcLogger().InfoContext(ctx, "user logged in",
		"operation", "login",
		"outcome", "success",
		"user_id", user.UserID,
		"session_id", resp.SessionID,
	)
	return resp, nil
}

// establishSession opens the session row and mints the token pair. The
// session id and refresh jti are generated here so the row and the refresh
// token are bound before either leaves the process.
func (s *Service) establishSession(ctx context.Context, user domain.User, req LoginRequest) (LoginResponse, error) {
	now := s.nowFn()
	sessionID := uuid.New()
	refreshJTI := uuid.NewString()

	session, err := s.sessions.Create(ctx, ports.SessionCreateParams{
		SessionID:       sessionID,
		UserID:          user.UserID,
		RefreshTokenJTI: refreshJTI,
		FingerprintHash: s.cipher.KeyedHash(req.Fingerprint),
		DeviceName:      req.DeviceName,
		DeviceOS:        req.DeviceOS,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
		LastActivityAt:  now,
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("create session: %w", err)
	}

	refresh, err := s.tokens.Sign(domain.TokenKindRefresh, domain.RefreshPayload{
		UserID:    user.UserID,
		SessionID: session.SessionID,
	}, ports.SignOptions{Subject: user.UserID.String(), JTI: refreshJTI})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("sign refresh token: %w", err)
	}

	access, err := s.tokens.Sign(domain.TokenKindAccess, domain.AccessPayload{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Email:     user.Email,
		Roles:     user.Roles,
	}, ports.SignOptions{Subject: user.UserID.String()})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	return LoginResponse{
		AccessToken:  access.Raw,
		RefreshToken: refresh.Raw,
		SessionID:    session.SessionID,
		ExpiresIn:    int64(s.tokens.TTL(domain.TokenKindAccess).Seconds()),
		Cookies: []CookieDirective{
			setCookie(CookieAccessToken, access.Raw, s.tokens.TTL(domain.TokenKindRefresh)),
			setCookie(CookieRefreshToken, refresh.Raw, s.tokens.TTL(domain.TokenKindRefresh)),
			setCookie(CookieFingerprint, req.Fingerprint, s.tokens.TTL(domain.TokenKindRefresh)),
			clearCookie(CookieMfaGate),
		},
	}, nil
}

// Authenticate verifies an access token for a protected request.
//
// A well-signed but expired access token is not a failure: the refresh token
// is consulted, and when the refresh is valid and bound to the same session a
// fresh access token is minted in place (sliding renewal). Hard token errors
// and any session anomaly end the request.
func (s *Service) Authenticate(ctx context.Context, accessToken, refreshToken string) (AuthContext, error) {
	verified, err := s.tokens.Verify(domain.TokenKindAccess, accessToken)
	if err != nil {
		return AuthContext{}, err
	}
	payload, ok := verified.Payload.(domain.AccessPayload)
	if !ok {
		return AuthContext{}, fmt.Errorf("%w: unexpected access payload", domain.ErrTokenInvalid)
	}

	revoked, err := s.revocations.IsRevoked(ctx, payload.SessionID)
	if err != nil {
		svcLogger().WarnContext(ctx, "revocation lookup failed, falling through to session row",
			"operation", "authenticate",
			"outcome", "degraded",
			"error", err,
		)
	}
	if revoked {
		return AuthContext{}, domain.ErrSessionNotFound
	}

	user, session, err := s.sessions.FindActiveWithUser(ctx, payload.UserID, payload.SessionID)
	if err != nil {
		return AuthContext{}, err
	}
	now := s.nowFn()
	if !session.ExpiresAt.After(now) || !session.CreatedAt.Add(s.cfg.SessionAbsoluteTTL).After(now) {
		return AuthContext{}, domain.ErrSessionNotFound
	}

	authCtx := AuthContext{User: user, Session: session}

	if verified.Expired {
		renewed, err := s.renewAccess(user, session, refreshToken)
		if err != nil {
			return AuthContext{}, err
		}
		cookie := setCookie(CookieAccessToken, renewed, s.tokens.TTL(domain.TokenKindRefresh))
		authCtx.RenewedAccessToken = renewed
		authCtx.RenewedAccessCookie = &cookie
	}

	if err := s.sessions.TouchActivity(ctx, session.SessionID, now); err != nil {
		svcLogger().WarnContext(ctx, "failed to touch session activity",
			"operation", "authenticate",
			"outcome", "partial",
			"session_id", session.SessionID,
			"error", err,
		)
	}
	return authCtx, nil
}

// renewAccess validates the refresh token against the session binding and
// mints a fresh access token.
func (s *Service) renewAccess(user domain.User, session domain.Session, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", domain.ErrTokenExpired
	}
	rvt, err := s.tokens.Verify(domain.TokenKindRefresh, refreshToken)
	if err != nil {
		return "", err
	}
	if rvt.Expired {
		return "", domain.ErrTokenExpired
	}
	rp, ok := rvt.Payload.(domain.RefreshPayload)
	if !ok || rp.SessionID != session.SessionID || rp.UserID != user.UserID {
		return "", fmt.Errorf("%w: refresh token session mismatch", domain.ErrTokenInvalid)
	}
	if rvt.JTI != session.RefreshTokenJTI {
		// A refresh token from a different lineage for this session means
		// theft or a stale copy; neither is honored.
		return "", fmt.Errorf("%w: refresh token jti mismatch", domain.ErrTokenInvalid)
	}

	access, err := s.tokens.Sign(domain.TokenKindAccess, domain.AccessPayload{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Email:     user.Email,
		Roles:     user.Roles,
	}, ports.SignOptions{Subject: user.UserID.String()})
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access.Raw, nil
}

// Refresh explicitly exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	rvt, err := s.tokens.Verify(domain.TokenKindRefresh, refreshToken)
	if err != nil {
		return RefreshResponse{}, err
	}
	if rvt.Expired {
		return RefreshResponse{}, domain.ErrTokenExpired
	}
	rp, ok := rvt.Payload.(domain.RefreshPayload)
	if !ok {
		return RefreshResponse{}, fmt.Errorf("%w: unexpected refresh payload", domain.ErrTokenInvalid)
	}

	revoked, err := s.revocations.IsRevoked(ctx, rp.SessionID)
	if err == nil && revoked {
		return RefreshResponse{}, domain.ErrSessionNotFound
	}

	user, session, err := s.sessions.FindActiveWithUser(ctx, rp.UserID, rp.SessionID)
	if err != nil {
		return RefreshResponse{}, err
	}
	now := s.nowFn()
	if !session.ExpiresAt.After(now) || !session.CreatedAt.Add(s.cfg.SessionAbsoluteTTL).After(now) {
		return RefreshResponse{}, domain.ErrSessionNotFound
	}
	if rvt.JTI != session.RefreshTokenJTI {
		return RefreshResponse{}, fmt.Errorf("%w: refresh token jti mismatch", domain.ErrTokenInvalid)
	}

	access, err := s.tokens.Sign(domain.TokenKindAccess, domain.AccessPayload{
		UserID:    user.UserID,
		SessionID: session.SessionID,
		Email:     user.Email,
		Roles:     user.Roles,
	}, ports.SignOptions{Subject: user.UserID.String()})
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	if err := s.sessions.TouchActivity(ctx, session.SessionID, now); err != nil {
		svcLogger().WarnContext(ctx, "failed to touch session activity",
			"operation", "refresh",
			"outcome", "partial",
			"session_id", session.SessionID,
			"error", err,
		)
	}
	return RefreshResponse{
		AccessToken: access.Raw,
		ExpiresIn:   int64(s.tokens.TTL(domain.TokenKindAccess).Seconds()),
		Cookies: []CookieDirective{
			setCookie(CookieAccessToken, access.Raw, s.tokens.TTL(domain.TokenKindRefresh)),
		},
	}, nil
}

// SignOut disables the session row and plants a revocation marker so requests
// carrying a still-valid access token stop immediately.
func (s *Service) SignOut(ctx context.Context, sessionID uuid.UUID) ([]CookieDirective, error) {
	now := s.nowFn()
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Signing out twice is fine; the cookies still get cleared.
			return ClearAuthCookies(), nil
		}
		return nil, err
	}

	if err := s.sessions.Disable(ctx, sessionID, now); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}
	if err := s.revocations.MarkRevoked(ctx, sessionID, session.ExpiresAt); err != nil {
		svcLogger().WarnContext(ctx, "failed to plant revocation marker",
			"operation", "sign_out",
			"outcome", "partial",
			"session_id", sessionID,
			"error", err,
		)
	}

	s.enqueueEvent(ctx, EventSessionRevoked, session.UserID.String(), map[string]any{
		"user_id":    session.UserID.String(),
		"session_id": sessionID.String(),
		"revoked_at": now.Format(time.RFC3339),
		"reason":     "sign_out",
	})
	svcLogger().InfoContext(ctx, "session signed out",
		"operation", "sign_out",
		"outcome", "success",
		"session_id", sessionID,
	)
	return ClearAuthCookies(), nil
}
