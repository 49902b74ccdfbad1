package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
	byID    map[uuid.UUID]domain.User
	events  []ports.OutboxEvent
}

func (f *fakeUsers) CreateWithOutboxTx(_ context.Context, params ports.CreateUserTxParams, event ports.OutboxEvent) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[params.Email]; exists {
		return domain.User{}, domain.ErrConflict
	}
	user := domain.User{
		UserID:        uuid.New(),
		Email:         params.Email,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		PasswordHash:  params.PasswordHash,
		Roles:         params.Roles,
		EmailVerified: params.EmailVerified,
		IsActive:      true,
		CreatedAt:     params.RegisteredAtUTC,
		UpdatedAt:     params.RegisteredAtUTC,
	}
	f.byEmail[user.Email] = user
	f.byID[user.UserID] = user
	f.events = append(f.events, event)
	return user, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) update(userID uuid.UUID, fn func(*domain.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&user)
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	return f.update(userID, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = updatedAt
	})
}

func (f *fakeUsers) SetEmailVerified(_ context.Context, userID uuid.UUID, verified bool, updatedAt time.Time) error {
	return f.update(userID, func(u *domain.User) {
		u.EmailVerified = verified
		u.UpdatedAt = updatedAt
	})
}

func (f *fakeUsers) UpdateMFA(_ context.Context, userID uuid.UUID, mfa domain.MFAConfig, updatedAt time.Time) error {
	return f.update(userID, func(u *domain.User) {
		u.MFA = mfa
		u.UpdatedAt = updatedAt
	})
}

func (f *fakeUsers) RecordFailedLogin(_ context.Context, userID uuid.UUID, attemptAt time.Time, ip string) error {
	return f.update(userID, func(u *domain.User) {
		u.LoginAttemptAt = &attemptAt
		u.LoginAttemptIP = ip
	})
}

func (f *fakeUsers) RecordLastLogin(_ context.Context, userID uuid.UUID, loginAt time.Time, ip string) error {
	return f.update(userID, func(u *domain.User) {
		u.LastLoginAt = &loginAt
		u.LastLoginIP = ip
		u.LoginAttemptAt = nil
		u.LoginAttemptIP = ""
	})
}

type fakeSessions struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]domain.Session
	users *fakeUsers
}

func (f *fakeSessions) Create(_ context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := domain.Session{
		SessionID:       params.SessionID,
		UserID:          params.UserID,
		RefreshTokenJTI: params.RefreshTokenJTI,
		FingerprintHash: params.FingerprintHash,
		DeviceName:      params.DeviceName,
		DeviceOS:        params.DeviceOS,
		IPAddress:       params.IPAddress,
		UserAgent:       params.UserAgent,
		IsActive:        true,
		CreatedAt:       params.LastActivityAt,
		LastActivityAt:  params.LastActivityAt,
		ExpiresAt:       params.ExpiresAt,
	}
	f.byID[session.SessionID] = session
	return session, nil
}

func (f *fakeSessions) GetByID(_ context.Context, sessionID uuid.UUID) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessions) FindActiveWithUser(ctx context.Context, userID, sessionID uuid.UUID) (domain.User, domain.Session, error) {
	f.mu.Lock()
	session, ok := f.byID[sessionID]
	f.mu.Unlock()
	if !ok || !session.IsActive || session.UserID != userID {
		return domain.User{}, domain.Session{}, domain.ErrSessionNotFound
	}
	user, err := f.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return domain.User{}, domain.Session{}, domain.ErrSessionNotFound
	}
	return user, session, nil
}

func (f *fakeSessions) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0)
	for _, s := range f.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	_ = limit
	_ = offset
	return out, nil
}

func (f *fakeSessions) TouchActivity(_ context.Context, sessionID uuid.UUID, touchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.LastActivityAt = touchedAt
	f.byID[sessionID] = session
	return nil
}

func (f *fakeSessions) Disable(_ context.Context, sessionID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.IsActive = false
	f.byID[sessionID] = session
	return nil
}

func (f *fakeSessions) DisableAllByUser(_ context.Context, userID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.byID {
		if s.UserID == userID {
			s.IsActive = false
			f.byID[id] = s
		}
	}
	return nil
}

func (f *fakeSessions) DisableExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, s := range f.byID {
		if s.IsActive && s.ExpiresAt.Before(before) {
			s.IsActive = false
			f.byID[id] = s
			count++
		}
	}
	return count, nil
}

func (f *fakeSessions) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.byID {
		if s.IsActive {
			n++
		}
	}
	return n
}

type fakeLoginAttempts struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

func (f *fakeLoginAttempts) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = int64(len(f.attempts) + 1)
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeLoginAttempts) ListByUser(_ context.Context, userID uuid.UUID, _, _ int, since *time.Time, status string) ([]domain.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LoginAttempt, 0)
	for _, a := range f.attempts {
		if a.UserID == nil || *a.UserID != userID {
			continue
		}
		if since != nil && a.AttemptAt.Before(*since) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error    { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeIdempotency struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
}

func (f *fakeIdempotency) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (f *fakeIdempotency) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[key]; ok {
		return domain.ErrConflict
	}
	f.records[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, Status: "PENDING", ExpiresAt: expiresAt}
	return nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = "COMPLETED"
	rec.ResponseCode = responseCode
	rec.ResponseBody = responseBody
	rec.UpdatedAt = at
	f.records[key] = rec
	return nil
}

type fakeLockouts struct {
	mu    sync.Mutex
	state map[string]ports.LockoutState
}

func (f *fakeLockouts) Get(_ context.Context, key string) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[key], nil
}

func (f *fakeLockouts) RecordFailure(_ context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state[key]
	state.FailedCount++
	if state.FailedCount >= threshold {
		lockedUntil := now.Add(lockoutWindow)
		state.LockedUntil = &lockedUntil
	}
	f.state[key] = state
	return state, nil
}

func (f *fakeLockouts) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, key)
	return nil
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]bool
}

func (f *fakeRevocations) MarkRevoked(_ context.Context, sessionID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[sessionID] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, sessionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[sessionID], nil
}

type fakeOTPIssuance struct {
	mu     sync.Mutex
	claims map[uuid.UUID]bool
}

func (f *fakeOTPIssuance) Claim(_ context.Context, userID uuid.UUID, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims[userID] {
		return false, nil
	}
	f.claims[userID] = true
	return true, nil
}

func (f *fakeOTPIssuance) Release(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claims, userID)
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return fmt.Errorf("hash mismatch")
	}
	return nil
}

const (
	fakeTOTPSecret    = "JBSWY3DPEHPK3PXP"
	fakeTOTPValidCode = "424242"
)

type fakeOTPProvider struct{}

func (fakeOTPProvider) Enroll(account string) (string, string, error) {
	return fakeTOTPSecret, "otpauth://totp/test:" + account + "?secret=" + fakeTOTPSecret, nil
}

func (fakeOTPProvider) ProvisioningURL(secret, account string) string {
	return "otpauth://totp/test:" + account + "?secret=" + secret
}

func (fakeOTPProvider) Validate(code, secret string) bool {
	return code == fakeTOTPValidCode && secret == fakeTOTPSecret
}
