package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
)

// EnrollTOTP returns the provisioning material for an authenticator app.
// Re-enrollment before activation reuses the stored secret so a user who
// scans the QR twice does not end up with two competing secrets.
func (s *Service) EnrollTOTP(ctx context.Context, userID uuid.UUID) (TOTPEnrollment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	if user.MFA.Enabled {
		return TOTPEnrollment{}, fmt.Errorf("%w: mfa already enabled", domain.ErrConflict)
	}

	if user.MFA.TOTPSecretEncrypted != "" {
		secret, err := s.cipher.DecryptOpaque(user.MFA.TOTPSecretEncrypted)
		if err != nil {
			return TOTPEnrollment{}, err
		}
		return TOTPEnrollment{
			Secret:     secret,
			OTPAuthURL: s.otp.ProvisioningURL(secret, user.Email),
		}, nil
	}

	secret, otpauthURL, err := s.otp.Enroll(user.Email)
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("enroll totp: %w", err)
	}
	encrypted, err := s.cipher.EncryptOpaque(secret)
	if err != nil {
		return TOTPEnrollment{}, err
	}

	mfa := user.MFA
	mfa.TOTPSecretEncrypted = encrypted
	if err := s.users.UpdateMFA(ctx, userID, mfa, s.nowFn()); err != nil {
		return TOTPEnrollment{}, err
	}
	return TOTPEnrollment{Secret: secret, OTPAuthURL: otpauthURL}, nil
}

// VerifyTOTP checks a code against the user's enrolled secret. The first
// successful verification activates MFA, completing the enrollment.
func (s *Service) VerifyTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.validateTOTPCode(user, code); err != nil {
		return err
	}
	if user.MFA.Enabled {
		return nil
	}
	mfa := user.MFA
	mfa.Enabled = true
	return s.users.UpdateMFA(ctx, userID, mfa, s.nowFn())
}

func (s *Service) validateTOTPCode(user domain.User, code string) error {
	if user.MFA.TOTPSecretEncrypted == "" {
		return fmt.Errorf("%w: no totp secret enrolled", domain.ErrMfaCodeInvalid)
	}
	secret, err := s.cipher.DecryptOpaque(user.MFA.TOTPSecretEncrypted)
	if err != nil {
		return err
	}
	if !s.otp.Validate(code, secret) {
		return domain.ErrMfaCodeInvalid
	}
	return nil
}

// RequestEmailOTP issues a one-time numeric code wrapped in an encrypted
// signed token. A re-request while an unexpired code is outstanding returns
// the SAME token, and the CAS claim guarantees concurrent requests cannot
// mint two competing codes.
func (s *Service) RequestEmailOTP(ctx context.Context, userID uuid.UUID) (EmailOTPResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return EmailOTPResponse{}, err
	}

	ttl := s.tokens.TTL(domain.TokenKindMfaOtp)

	if resp, ok := s.outstandingEmailOTP(user); ok {
		return resp, nil
	}

	won, err := s.otpIssuance.Claim(ctx, userID, ttl)
	if err != nil {
		return EmailOTPResponse{}, err
	}
	if !won {
		// Lost the race; the winner's token is (or is about to be) on the
		// user row. Re-read and return it.
		user, err = s.users.GetByID(ctx, userID)
		if err != nil {
			return EmailOTPResponse{}, err
		}
		if resp, ok := s.outstandingEmailOTP(user); ok {
			return resp, nil
		}
		return EmailOTPResponse{}, domain.ErrRateLimited
	}

	code := randomDigits(s.cfg.OTPCodeLength)
	token, err := s.issueOpaqueToken(domain.TokenKindMfaOtp, domain.MfaOtpPayload{
		UserID: userID,
		Method: domain.OTPMethodEmail,
		Code:   code,
	}, userID)
	if err != nil {
		_ = s.otpIssuance.Release(ctx, userID)
		return EmailOTPResponse{}, err
	}

	mfa := user.MFA
	mfa.OTPTokenEncrypted = token
	if err := s.users.UpdateMFA(ctx, userID, mfa, s.nowFn()); err != nil {
		_ = s.otpIssuance.Release(ctx, userID)
		return EmailOTPResponse{}, err
	}

	expiresAt := s.nowFn().Add(ttl)
	s.enqueueEvent(ctx, EventOTPIssued, userID.String(), map[string]any{
		"user_id":    userID.String(),
		"email":      user.Email,
		"method":     domain.OTPMethodEmail,
		"code":       code,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	svcLogger().InfoContext(ctx, "email otp issued",
		"operation", "request_email_otp",
		"outcome", "success",
		"user_id", userID,
	)
	return EmailOTPResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// outstandingEmailOTP reports the stored OTP token when one is still valid.
func (s *Service) outstandingEmailOTP(user domain.User) (EmailOTPResponse, bool) {
	if user.MFA.OTPTokenEncrypted == "" {
		return EmailOTPResponse{}, false
	}
	raw, err := s.cipher.DecryptOpaque(user.MFA.OTPTokenEncrypted)
	if err != nil {
		return EmailOTPResponse{}, false
	}
	verified, err := s.tokens.Verify(domain.TokenKindMfaOtp, raw)
	if err != nil || verified.Expired {
		return EmailOTPResponse{}, false
	}
	return EmailOTPResponse{
		Token:             user.MFA.OTPTokenEncrypted,
		CodeAlreadyIssued: true,
		ExpiresAt:         verified.ExpiresAt,
	}, true
}

// VerifyEmailOTP checks a submitted code against the outstanding token.
// On a wrong code the result carries how long the current code stays usable.
func (s *Service) VerifyEmailOTP(ctx context.Context, userID uuid.UUID, code string) (OTPVerification, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return OTPVerification{}, err
	}
	return s.validateEmailOTP(ctx, user, code)
}

func (s *Service) validateEmailOTP(ctx context.Context, user domain.User, code string) (OTPVerification, error) {
	if user.MFA.OTPTokenEncrypted == "" {
		return OTPVerification{}, fmt.Errorf("%w: no outstanding code", domain.ErrMfaCodeInvalid)
	}
	raw, err := s.cipher.DecryptOpaque(user.MFA.OTPTokenEncrypted)
	if err != nil {
		return OTPVerification{}, err
	}
	verified, err := s.tokens.Verify(domain.TokenKindMfaOtp, raw)
	if err != nil {
		return OTPVerification{}, err
	}
	if verified.Expired {
		return OTPVerification{}, domain.ErrTokenExpired
	}
	payload, ok := verified.Payload.(domain.MfaOtpPayload)
	if !ok {
		return OTPVerification{}, fmt.Errorf("%w: unexpected otp payload", domain.ErrTokenInvalid)
	}
	if payload.Method != domain.OTPMethodEmail {
		return OTPVerification{}, domain.ErrMfaTokenMismatch
	}

	remaining := verified.ExpiresAt.Sub(s.nowFn())
	if !s.cipher.HashEquals(payload.Code, code) {
		return OTPVerification{TimeRemaining: remaining}, domain.ErrMfaCodeInvalid
	}

	// Consume the code so it cannot be replayed.
	mfa := user.MFA
	mfa.OTPTokenEncrypted = ""
	if err := s.users.UpdateMFA(ctx, user.UserID, mfa, s.nowFn()); err != nil {
		return OTPVerification{}, err
	}
	_ = s.otpIssuance.Release(ctx, user.UserID)

	return OTPVerification{OK: true, TimeRemaining: remaining}, nil
}

// CompleteMFALogin exchanges a gate token plus a correct second factor for a
// full session. The gate token must carry the same fingerprint hash the
// client presented at the password step.
func (s *Service) CompleteMFALogin(ctx context.Context, req MFACompleteRequest) (LoginResponse, error) {
	payload, err := s.openOpaqueToken(ctx, domain.TokenKindMfaAuthGate, req.GateToken)
	if err != nil {
		return LoginResponse{}, err
	}
	gate, ok := payload.(domain.MfaGatePayload)
	if !ok {
		return LoginResponse{}, fmt.Errorf("%w: unexpected gate payload", domain.ErrTokenInvalid)
	}
	if gate.FingerprintHash != "" && !s.cipher.HashEquals(gate.FingerprintHash, s.cipher.KeyedHash(req.Fingerprint)) {
		return LoginResponse{}, domain.ErrMfaTokenMismatch
	}

	user, err := s.users.GetByID(ctx, gate.UserID)
	if err != nil {
		return LoginResponse{}, err
	}
	if !user.IsActive {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	loginReq := LoginRequest{
		Email:       user.Email,
		Fingerprint: req.Fingerprint,
		DeviceName:  req.DeviceName,
		DeviceOS:    req.DeviceOS,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	}

	switch req.Method {
	case domain.OTPMethodEmail:
		if _, err := s.validateEmailOTP(ctx, user, req.Code); err != nil {
			s.recordAttempt(ctx, &user.UserID, loginReq, attemptStatusFailed, "wrong email otp")
			return LoginResponse{}, err
		}
	case "", domain.OTPMethodTOTP:
		if err := s.validateTOTPCode(user, req.Code); err != nil {
			s.recordAttempt(ctx, &user.UserID, loginReq, attemptStatusFailed, "wrong totp code")
			return LoginResponse{}, err
		}
	default:
		return LoginResponse{}, fmt.Errorf("%w: unknown mfa method %q", domain.ErrInvalidInput, req.Method)
	}

	return s.finishLogin(ctx, user, loginReq)
}

// EnableMFA activates MFA after the user proves possession of the enrolled
// TOTP secret with a current code.
func (s *Service) EnableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFA.Enabled {
		return nil
	}
	if err := s.validateTOTPCode(user, code); err != nil {
		return err
	}

	mfa := user.MFA
	mfa.Enabled = true
	if err := s.users.UpdateMFA(ctx, userID, mfa, s.nowFn()); err != nil {
		return err
	}
	svcLogger().InfoContext(ctx, "mfa enabled",
		"operation", "enable_mfa",
		"outcome", "success",
		"user_id", userID,
	)
	return nil
}

// DisableMFA deactivates MFA after a current TOTP code. The enrolled secret
// and any outstanding OTP token are discarded.
func (s *Service) DisableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFA.Enabled {
		return nil
	}
	if err := s.validateTOTPCode(user, code); err != nil {
		return err
	}

	if err := s.users.UpdateMFA(ctx, userID, domain.MFAConfig{}, s.nowFn()); err != nil {
		return err
	}
	_ = s.otpIssuance.Release(ctx, userID)
	svcLogger().InfoContext(ctx, "mfa disabled",
		"operation", "disable_mfa",
		"outcome", "success",
		"user_id", userID,
	)
	return nil
}
