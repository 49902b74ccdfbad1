package application_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loginforge/authd/internal/adapters/security"
	"github.com/loginforge/authd/internal/application"
	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

type fixture struct {
	service  *application.Service
	users    *fakeUsers
	sessions *fakeSessions
	lockouts *fakeLockouts
	outbox   *fakeOutbox
	cipher   *security.AESCipher
	tokens   *security.TokenAuthority

	mu    sync.Mutex
	clock time.Time
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func tokenKindsForTest() map[domain.TokenKind]security.KindConfig {
	ttls := map[domain.TokenKind]time.Duration{
		domain.TokenKindAccess:         15 * time.Minute,
		domain.TokenKindRefresh:        30 * 24 * time.Hour,
		domain.TokenKindVerification:   24 * time.Hour,
		domain.TokenKindForgotPassword: time.Hour,
		domain.TokenKindMfaAuthGate:    10 * time.Minute,
		domain.TokenKindMfaOtp:         5 * time.Minute,
	}
	kinds := make(map[domain.TokenKind]security.KindConfig, len(ttls))
	for kind, ttl := range ttls {
		kinds[kind] = security.KindConfig{
			Secret:   []byte("test-secret-" + string(kind) + "-0123456789"),
			TTL:      ttl,
			Audience: "authd:" + string(kind),
			Issuer:   "authd-test",
		}
	}
	return kinds
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, application.Config{
		FailedLoginThreshold: 10,
		LockoutWindow:        10 * time.Minute,
	})
}

func newFixtureWithConfig(t *testing.T, cfg application.Config) *fixture {
	t.Helper()

	f := &fixture{clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	tokens, err := security.NewTokenAuthority(tokenKindsForTest())
	if err != nil {
		t.Fatalf("init token authority: %v", err)
	}
	tokens = tokens.WithClock(f.now)

	cipher, err := security.NewAESCipher(bytes.Repeat([]byte{0x42}, 32), bytes.Repeat([]byte{0x17}, 16))
	if err != nil {
		t.Fatalf("init cipher: %v", err)
	}

	users := &fakeUsers{
		byEmail: make(map[string]domain.User),
		byID:    make(map[uuid.UUID]domain.User),
	}
	sessions := &fakeSessions{byID: make(map[uuid.UUID]domain.Session), users: users}
	lockouts := &fakeLockouts{state: map[string]ports.LockoutState{}}
	outbox := &fakeOutbox{}

	svc := application.NewService(application.Dependencies{
		Config: cfg,
		Users:         users,
		Sessions:      sessions,
		LoginAttempts: &fakeLoginAttempts{},
		Outbox:        outbox,
		Idempotency:   &fakeIdempotency{records: map[string]ports.IdempotencyRecord{}},
		Lockouts:      lockouts,
		Revocations:   &fakeRevocations{revoked: map[uuid.UUID]bool{}},
		OTPIssuance:   &fakeOTPIssuance{claims: map[uuid.UUID]bool{}},
		Hasher:        fakeHasher{},
		Tokens:        tokens,
		Cipher:        cipher,
		OTP:           fakeOTPProvider{},
		NowFn:         f.now,
	})

	f.service = svc
	f.users = users
	f.sessions = sessions
	f.lockouts = lockouts
	f.outbox = outbox
	f.cipher = cipher
	f.tokens = tokens
	return f
}

const testPassword = "CorrectBatt3ry$taple"

func registerUser(t *testing.T, f *fixture, email string) application.RegisterResponse {
	t.Helper()
	res, err := f.service.Register(context.Background(), "", application.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  testPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return res
}

func loginUser(t *testing.T, f *fixture, email string) application.LoginResponse {
	t.Helper()
	res, err := f.service.Login(context.Background(), application.LoginRequest{
		Email:       email,
		Password:    testPassword,
		Fingerprint: "fp-1",
		DeviceName:  "test",
		DeviceOS:    "linux",
		IPAddress:   "127.0.0.1",
		UserAgent:   "unit-test",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

func TestRegisterLoginAuthenticateSignOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "user@example.com")
	if registerRes.UserID == uuid.Nil {
		t.Fatalf("register returned empty user id")
	}
	if registerRes.VerificationToken == "" {
		t.Fatalf("register returned empty verification token")
	}

	loginRes := loginUser(t, f, "user@example.com")
	if loginRes.MfaRequired {
		t.Fatalf("did not expect mfa challenge")
	}
	if loginRes.AccessToken == "" || loginRes.RefreshToken == "" || loginRes.SessionID == uuid.Nil {
		t.Fatalf("expected full token pair and session id")
	}

	authCtx, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if authCtx.User.UserID != registerRes.UserID || authCtx.Session.SessionID != loginRes.SessionID {
		t.Fatalf("auth context does not match login")
	}
	if authCtx.RenewedAccessToken != "" {
		t.Fatalf("unexpected renewal on a fresh access token")
	}

	cookies, err := f.service.SignOut(ctx, loginRes.SessionID)
	if err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	if len(cookies) == 0 {
		t.Fatalf("expected cookie-clearing directives on sign out")
	}

	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session-unavailable after sign out, got %v", err)
	}
}

func TestVerifyEmailMarksAccountVerified(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "verify@example.com")
	if err := f.service.VerifyEmail(ctx, registerRes.VerificationToken); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	user, err := f.users.GetByID(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.EmailVerified {
		t.Fatalf("expected email_verified after token consumption")
	}
}

func TestLoginLockoutBoundary(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerUser(t, f, "lockout@example.com")

	wrongLogin := func() error {
		_, err := f.service.Login(ctx, application.LoginRequest{
			Email:    "lockout@example.com",
			Password: "Wrong" + testPassword,
		})
		return err
	}

	// Failures 1..10 all answer with the credentials error, including the
	// tenth one that trips the threshold.
	for i := 1; i <= 10; i++ {
		if err := wrongLogin(); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Attempt 11 is rejected up front, even with the correct password.
	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "lockout@example.com",
		Password: testPassword,
	}); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts on attempt 11, got %v", err)
	}

	// Past the lockout window the correct password works again.
	f.advance(11 * time.Minute)
	loginUser(t, f, "lockout@example.com")
}

func TestLoginWithMFAEnabledCreatesNoSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "mfa@example.com")

	if _, err := f.service.EnrollTOTP(ctx, registerRes.UserID); err != nil {
		t.Fatalf("enroll totp failed: %v", err)
	}
	if err := f.service.EnableMFA(ctx, registerRes.UserID, fakeTOTPValidCode); err != nil {
		t.Fatalf("enable mfa failed: %v", err)
	}

	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Email:       "mfa@example.com",
		Password:    testPassword,
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !loginRes.MfaRequired || loginRes.MfaGateToken == "" {
		t.Fatalf("expected mfa gate token")
	}
	if loginRes.AccessToken != "" || loginRes.RefreshToken != "" {
		t.Fatalf("mfa-gated login must not issue session tokens")
	}
	if got := f.sessions.activeCount(); got != 0 {
		t.Fatalf("mfa-gated login created %d sessions", got)
	}

	completeRes, err := f.service.CompleteMFALogin(ctx, application.MFACompleteRequest{
		GateToken:   loginRes.MfaGateToken,
		Code:        fakeTOTPValidCode,
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("complete mfa login failed: %v", err)
	}
	if completeRes.AccessToken == "" || completeRes.SessionID == uuid.Nil {
		t.Fatalf("expected full session after mfa completion")
	}
	if got := f.sessions.activeCount(); got != 1 {
		t.Fatalf("expected exactly one session, got %d", got)
	}
}

func TestCompleteMFALoginRejectsFingerprintMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "mfa-fp@example.com")
	if _, err := f.service.EnrollTOTP(ctx, registerRes.UserID); err != nil {
		t.Fatalf("enroll totp failed: %v", err)
	}
	if err := f.service.EnableMFA(ctx, registerRes.UserID, fakeTOTPValidCode); err != nil {
		t.Fatalf("enable mfa failed: %v", err)
	}

	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Email:       "mfa-fp@example.com",
		Password:    testPassword,
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := f.service.CompleteMFALogin(ctx, application.MFACompleteRequest{
		GateToken:   loginRes.MfaGateToken,
		Code:        fakeTOTPValidCode,
		Fingerprint: "different-device",
	}); !errors.Is(err, domain.ErrMfaTokenMismatch) {
		t.Fatalf("expected fingerprint mismatch rejection, got %v", err)
	}
}

func TestSlidingAccessRenewal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerUser(t, f, "renew@example.com")
	loginRes := loginUser(t, f, "renew@example.com")

	// Access TTL is 15 minutes plus 30 seconds leeway; 20 minutes later the
	// access token is expired but the refresh token is not.
	f.advance(20 * time.Minute)

	authCtx, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("authenticate with expired access failed: %v", err)
	}
	if authCtx.RenewedAccessToken == "" || authCtx.RenewedAccessCookie == nil {
		t.Fatalf("expected sliding renewal to mint a fresh access token")
	}

	// The renewed token authenticates on its own.
	if _, err := f.service.Authenticate(ctx, authCtx.RenewedAccessToken, loginRes.RefreshToken); err != nil {
		t.Fatalf("renewed access token rejected: %v", err)
	}
}

func TestExpiredAccessWithoutRefreshFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerUser(t, f, "norefresh@example.com")
	loginRes := loginUser(t, f, "norefresh@example.com")
	f.advance(20 * time.Minute)

	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, ""); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired without a refresh token, got %v", err)
	}
}

func TestRefreshJTIMismatchRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "jti@example.com")
	loginRes := loginUser(t, f, "jti@example.com")
	f.advance(20 * time.Minute)

	// A refresh token for the same session signed under a different jti
	// models a stolen or superseded lineage.
	forged, err := f.tokens.Sign(domain.TokenKindRefresh, domain.RefreshPayload{
		UserID:    registerRes.UserID,
		SessionID: loginRes.SessionID,
	}, ports.SignOptions{JTI: uuid.NewString()})
	if err != nil {
		t.Fatalf("sign forged refresh: %v", err)
	}

	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, forged.Raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected jti mismatch rejection, got %v", err)
	}
}

func TestEmailOTPIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerRes := registerUser(t, f, "otp@example.com")

	first, err := f.service.RequestEmailOTP(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("first otp request failed: %v", err)
	}
	if first.Token == "" || first.CodeAlreadyIssued {
		t.Fatalf("first request should mint a fresh token")
	}

	second, err := f.service.RequestEmailOTP(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("second otp request failed: %v", err)
	}
	if !second.CodeAlreadyIssued {
		t.Fatalf("second request inside the window should reuse the code")
	}
	if second.Token != first.Token {
		t.Fatalf("expected identical token on re-request")
	}
}

func TestVerifyEmailOTP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerRes := registerUser(t, f, "otp-verify@example.com")

	issued, err := f.service.RequestEmailOTP(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("otp request failed: %v", err)
	}

	// Recover the plaintext code the way the mail worker would: unwrap and
	// verify the issued token.
	raw, err := f.cipher.DecryptOpaque(issued.Token)
	if err != nil {
		t.Fatalf("unwrap otp token: %v", err)
	}
	verified, err := f.tokens.Verify(domain.TokenKindMfaOtp, raw)
	if err != nil {
		t.Fatalf("verify otp token: %v", err)
	}
	code := verified.Payload.(domain.MfaOtpPayload).Code

	wrong, err := f.service.VerifyEmailOTP(ctx, registerRes.UserID, "000000")
	if !errors.Is(err, domain.ErrMfaCodeInvalid) {
		t.Fatalf("expected ErrMfaCodeInvalid for wrong code, got %v", err)
	}
	if wrong.TimeRemaining <= 0 {
		t.Fatalf("expected positive time remaining with the wrong code")
	}

	ok, err := f.service.VerifyEmailOTP(ctx, registerRes.UserID, code)
	if err != nil {
		t.Fatalf("verify correct code failed: %v", err)
	}
	if !ok.OK || ok.TimeRemaining <= 0 {
		t.Fatalf("expected successful verification with time remaining")
	}

	// The code is consumed; a replay fails.
	if _, err := f.service.VerifyEmailOTP(ctx, registerRes.UserID, code); !errors.Is(err, domain.ErrMfaCodeInvalid) {
		t.Fatalf("expected consumed code to be rejected, got %v", err)
	}
}

func TestRevokeSessionByIDIsImmediate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "revoke@example.com")
	loginRes := loginUser(t, f, "revoke@example.com")

	if err := f.service.RevokeSessionByID(ctx, registerRes.UserID, loginRes.SessionID); err != nil {
		t.Fatalf("revoke session failed: %v", err)
	}
	// The access token is still well-signed and unexpired; the session check
	// must reject it anyway.
	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected immediate revocation, got %v", err)
	}
}

func TestRevokeSessionRejectsForeignOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerUser(t, f, "owner@example.com")
	intruder := registerUser(t, f, "intruder@example.com")
	loginRes := loginUser(t, f, "owner@example.com")

	if err := f.service.RevokeSessionByID(ctx, intruder.UserID, loginRes.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected foreign session to look nonexistent, got %v", err)
	}
	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken); err != nil {
		t.Fatalf("owner session must survive the foreign revoke: %v", err)
	}
}

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerUser(t, f, "reset@example.com")
	loginRes := loginUser(t, f, "reset@example.com")

	resetToken, err := f.service.ForgotPassword(ctx, "reset@example.com")
	if err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	if resetToken == "" {
		t.Fatalf("expected reset token for a known account")
	}

	const newPassword = "Fresh$ecret456xyz"
	if err := f.service.ResetPassword(ctx, application.PasswordResetRequest{
		Token:       resetToken,
		NewPassword: newPassword,
	}); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	if _, err := f.service.Authenticate(ctx, loginRes.AccessToken, loginRes.RefreshToken); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected all sessions revoked after reset, got %v", err)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "reset@example.com",
		Password: newPassword,
	}); err != nil {
		t.Fatalf("login with the new password failed: %v", err)
	}
}

func TestForgotPasswordHidesUnknownEmails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	token, err := f.service.ForgotPassword(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("forgot password must not reveal unknown emails: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token for unknown email")
	}
}

func TestRegisterIdempotencyReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	req := application.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "idem@example.com",
		Password:  testPassword,
	}
	first, err := f.service.Register(ctx, "idem-key-1", req)
	if err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	replay, err := f.service.Register(ctx, "idem-key-1", req)
	if err != nil {
		t.Fatalf("replay register failed: %v", err)
	}
	if replay.UserID != first.UserID {
		t.Fatalf("replay must return the original response")
	}

	req.FirstName = "Grace"
	if _, err := f.service.Register(ctx, "idem-key-1", req); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict for changed body, got %v", err)
	}
}

func TestTOTPEnrollmentReusesPendingSecret(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerRes := registerUser(t, f, "totp@example.com")

	first, err := f.service.EnrollTOTP(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("first enroll failed: %v", err)
	}
	second, err := f.service.EnrollTOTP(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("second enroll failed: %v", err)
	}
	if first.Secret != second.Secret {
		t.Fatalf("re-enrollment before activation must reuse the secret")
	}
}

func TestRegisterAndLoginEmitOutboxEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registerRes := registerUser(t, f, "events@example.com")
	loginUser(t, f, "events@example.com")

	if len(f.users.events) != 1 || f.users.events[0].EventType != application.EventUserRegistered {
		t.Fatalf("expected the registration event in the user tx, got %+v", f.users.events)
	}
	if !bytes.Contains(f.users.events[0].Payload, []byte("events@example.com")) {
		t.Fatalf("registration event payload missing the email")
	}

	var sawLogin bool
	for _, event := range f.outbox.events {
		if event.EventType == application.EventUserLogin &&
			event.PartitionKey == registerRes.UserID.String() {
			sawLogin = true
		}
	}
	if !sawLogin {
		t.Fatalf("expected a login event keyed by the user id, got %+v", f.outbox.events)
	}
}

func TestVerifyTOTPActivatesMFA(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerRes := registerUser(t, f, "totp-activate@example.com")

	if _, err := f.service.EnrollTOTP(ctx, registerRes.UserID); err != nil {
		t.Fatalf("enroll totp failed: %v", err)
	}
	if err := f.service.VerifyTOTP(ctx, registerRes.UserID, "000000"); !errors.Is(err, domain.ErrMfaCodeInvalid) {
		t.Fatalf("expected wrong code rejection, got %v", err)
	}
	if err := f.service.VerifyTOTP(ctx, registerRes.UserID, fakeTOTPValidCode); err != nil {
		t.Fatalf("verify totp failed: %v", err)
	}

	user, err := f.users.GetByID(ctx, registerRes.UserID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.MFA.Enabled {
		t.Fatalf("first successful verification must activate mfa")
	}
}

func TestVerifyEmailOTPRejectsForeignMethod(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registerRes := registerUser(t, f, "otp-method@example.com")

	// A well-signed otp token for another delivery method must not satisfy
	// the email verifier, even with the right code.
	signed, err := f.tokens.Sign(domain.TokenKindMfaOtp, domain.MfaOtpPayload{
		UserID: registerRes.UserID,
		Method: "SMS",
		Code:   "123456",
	}, ports.SignOptions{Subject: registerRes.UserID.String()})
	if err != nil {
		t.Fatalf("sign otp token: %v", err)
	}
	wrapped, err := f.cipher.EncryptOpaque(signed.Raw)
	if err != nil {
		t.Fatalf("wrap otp token: %v", err)
	}
	if err := f.users.UpdateMFA(ctx, registerRes.UserID, domain.MFAConfig{OTPTokenEncrypted: wrapped}, f.now()); err != nil {
		t.Fatalf("store otp token: %v", err)
	}

	if _, err := f.service.VerifyEmailOTP(ctx, registerRes.UserID, "123456"); !errors.Is(err, domain.ErrMfaTokenMismatch) {
		t.Fatalf("expected method mismatch rejection, got %v", err)
	}
}

func TestCompleteMFALoginRejectsUnknownMethod(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes := registerUser(t, f, "mfa-method@example.com")
	if _, err := f.service.EnrollTOTP(ctx, registerRes.UserID); err != nil {
		t.Fatalf("enroll totp failed: %v", err)
	}
	if err := f.service.EnableMFA(ctx, registerRes.UserID, fakeTOTPValidCode); err != nil {
		t.Fatalf("enable mfa failed: %v", err)
	}
	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Email:       "mfa-method@example.com",
		Password:    testPassword,
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := f.service.CompleteMFALogin(ctx, application.MFACompleteRequest{
		GateToken:   loginRes.MfaGateToken,
		Code:        fakeTOTPValidCode,
		Method:      "SMS",
		Fingerprint: "fp-1",
	}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unknown method rejection, got %v", err)
	}
	if got := f.sessions.activeCount(); got != 0 {
		t.Fatalf("rejected completion must not create a session, got %d", got)
	}
}

func TestRefreshRejectsSessionPastAbsoluteAge(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, application.Config{
		FailedLoginThreshold: 10,
		LockoutWindow:        10 * time.Minute,
		SessionAbsoluteTTL:   30 * time.Minute,
	})
	ctx := context.Background()

	registerUser(t, f, "absolute@example.com")
	loginRes := loginUser(t, f, "absolute@example.com")

	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); err != nil {
		t.Fatalf("refresh inside the age bound failed: %v", err)
	}

	// The refresh token itself is still well within its own TTL; only the
	// session's absolute age disqualifies it.
	f.advance(45 * time.Minute)
	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected absolute-age rejection, got %v", err)
	}
}
