package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

const idempotencyTTL = 24 * time.Hour

// Register creates a user account and issues an encrypted verification token.
// When idempotencyKey is non-empty a replay with the same request body returns
// the stored response; a replay with a different body is a conflict.
func (s *Service) Register(ctx context.Context, idempotencyKey string, req RegisterRequest) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	req.Email = email
	if req.FirstName == "" || req.LastName == "" {
		return RegisterResponse{}, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	requestHash := hashRequest(req)
	if idempotencyKey != "" {
		replay, done, err := s.checkIdempotency(ctx, idempotencyKey, requestHash)
		if err != nil {
			return RegisterResponse{}, err
		}
		if done {
			return replay, nil
		}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	eventID := uuid.New()
	payload, _ := json.Marshal(map[string]any{
		"event_id":   eventID.String(),
		"email":      req.Email,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"created_at": now.Format(time.RFC3339),
	})

	user, err := s.users.CreateWithOutboxTx(ctx, ports.CreateUserTxParams{
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PasswordHash:    passwordHash,
		Roles:           s.cfg.DefaultRoles,
		EmailVerified:   false,
		RegisteredAtUTC: now,
	}, ports.OutboxEvent{
		EventID:      eventID,
		EventType:    EventUserRegistered,
		PartitionKey: req.Email,
		Payload:      payload,
		OccurredAt:   now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return RegisterResponse{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return RegisterResponse{}, fmt.Errorf("create user: %w", err)
	}

	verification, err := s.issueOpaqueToken(domain.TokenKindVerification, domain.VerificationPayload{
		UserID: user.UserID,
		Email:  user.Email,
	}, user.UserID)
	if err != nil {
		return RegisterResponse{}, err
	}

	resp := RegisterResponse{UserID: user.UserID, VerificationToken: verification}
	if idempotencyKey != "" {
		s.completeIdempotency(ctx, idempotencyKey, resp)
	}

	svcLogger().InfoContext(ctx, "user registered",
		"operation", "register",
		"outcome", "success",
		"user_id", user.UserID,
	)
	return resp, nil
}

// VerifyEmail consumes an encrypted verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, opaqueToken string) error {
	payload, err := s.openOpaqueToken(ctx, domain.TokenKindVerification, opaqueToken)
	if err != nil {
		return err
	}
	vp, ok := payload.(domain.VerificationPayload)
	if !ok {
		return fmt.Errorf("%w: unexpected verification payload", domain.ErrTokenInvalid)
	}

	user, err := s.users.GetByID(ctx, vp.UserID)
	if err != nil {
		return err
	}
	if user.Email != vp.Email {
		// The account email changed after the link was issued.
		return fmt.Errorf("%w: verification email mismatch", domain.ErrTokenInvalid)
	}
	if user.EmailVerified {
		return nil
	}
	return s.users.SetEmailVerified(ctx, user.UserID, true, s.nowFn())
}

// ForgotPassword issues an encrypted reset token without revealing whether the
// email exists. Unknown emails return success with an empty token.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}

	token, err := s.issueOpaqueToken(domain.TokenKindForgotPassword, domain.ForgotPasswordPayload{
		UserID: user.UserID,
		Email:  user.Email,
	}, user.UserID)
	if err != nil {
		return "", err
	}

	s.enqueueEvent(ctx, EventPasswordForgot, user.UserID.String(), map[string]any{
		"user_id":     user.UserID.String(),
		"email":       user.Email,
		"reset_token": token,
		"expires_in":  int64(s.tokens.TTL(domain.TokenKindForgotPassword).Seconds()),
	})
	return token, nil
}

// ResetPassword consumes a reset token, installs the new credential, and
// revokes every session the account holds.
func (s *Service) ResetPassword(ctx context.Context, req PasswordResetRequest) error {
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	payload, err := s.openOpaqueToken(ctx, domain.TokenKindForgotPassword, req.Token)
	if err != nil {
		return err
	}
	fp, ok := payload.(domain.ForgotPasswordPayload)
	if !ok {
		return fmt.Errorf("%w: unexpected reset payload", domain.ErrTokenInvalid)
	}

	user, err := s.users.GetByID(ctx, fp.UserID)
	if err != nil {
		return err
	}
	if user.Email != fp.Email {
		return fmt.Errorf("%w: reset email mismatch", domain.ErrTokenInvalid)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	if err := s.users.UpdatePassword(ctx, user.UserID, hash, now); err != nil {
		return err
	}

	// Credential change invalidates every open session for the account.
	if err := s.sessions.DisableAllByUser(ctx, user.UserID, now); err != nil {
		svcLogger().WarnContext(ctx, "failed to revoke sessions after reset",
			"operation", "reset_password",
			"outcome", "partial",
			"user_id", user.UserID,
			"error", err,
		)
	}
	_ = s.lockouts.Clear(ctx, lockoutKey(user.Email))

	s.enqueueEvent(ctx, EventPasswordReset, user.UserID.String(), map[string]any{
		"user_id":  user.UserID.String(),
		"email":    user.Email,
		"reset_at": now.Format(time.RFC3339),
	})

	svcLogger().InfoContext(ctx, "password reset",
		"operation", "reset_password",
		"outcome", "success",
		"user_id", user.UserID,
	)
	return nil
}

// issueOpaqueToken signs a payload for kind and wraps it in the opaque cipher.
func (s *Service) issueOpaqueToken(kind domain.TokenKind, payload domain.TokenPayload, subject uuid.UUID) (string, error) {
	signed, err := s.tokens.Sign(kind, payload, ports.SignOptions{Subject: subject.String()})
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	opaque, err := s.cipher.EncryptOpaque(signed.Raw)
	if err != nil {
		return "", fmt.Errorf("wrap %s token: %w", kind, err)
	}
	return opaque, nil
}

// openOpaqueToken unwraps and verifies a single-purpose opaque token.
// Expired link tokens are final, so Expired is folded into ErrTokenExpired.
func (s *Service) openOpaqueToken(ctx context.Context, kind domain.TokenKind, opaque string) (domain.TokenPayload, error) {
	raw, err := s.cipher.DecryptOpaque(opaque)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap failed", domain.ErrTokenInvalid)
	}
	verified, err := s.tokens.Verify(kind, raw)
	if err != nil {
		return nil, err
	}
	if verified.Expired {
		return nil, domain.ErrTokenExpired
	}
	return verified.Payload, nil
}

func (s *Service) checkIdempotency(ctx context.Context, key, requestHash string) (RegisterResponse, bool, error) {
	record, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return RegisterResponse{}, false, err
	}
	if record != nil {
		if record.RequestHash != requestHash {
			return RegisterResponse{}, false, domain.ErrIdempotencyConflict
		}
		if record.Status == "COMPLETED" {
			var resp RegisterResponse
			if err := json.Unmarshal(record.ResponseBody, &resp); err != nil {
				return RegisterResponse{}, false, fmt.Errorf("decode idempotent response: %w", err)
			}
			return resp, true, nil
		}
		// A reservation without a completion means a prior attempt is in
		// flight or crashed; the client should retry later.
		return RegisterResponse{}, false, domain.ErrConflict
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(idempotencyTTL)); err != nil {
		return RegisterResponse{}, false, err
	}
	return RegisterResponse{}, false, nil
}

func (s *Service) completeIdempotency(ctx context.Context, key string, resp RegisterResponse) {
	body, _ := json.Marshal(resp)
	if err := s.idempotency.Complete(ctx, key, http.StatusCreated, body, s.nowFn()); err != nil {
		svcLogger().WarnContext(ctx, "failed to complete idempotency record",
			"operation", "register",
			"outcome", "partial",
			"error", err,
		)
	}
}
