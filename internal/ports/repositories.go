package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
)

// CreateUserTxParams captures atomic user-creation inputs.
// It includes outbox metadata so registration state and its integration
// signal cannot diverge.
type CreateUserTxParams struct {
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	Roles           []string
	EmailVerified   bool
	RegisteredAtUTC time.Time
}

// UserRepository defines persistence operations for user identities.
// The engine never deletes users; it only mutates auth-relevant columns.
type UserRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateUserTxParams, outboxEvent OutboxEvent) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID, verified bool, updatedAt time.Time) error
	UpdateMFA(ctx context.Context, userID uuid.UUID, mfa domain.MFAConfig, updatedAt time.Time) error
	RecordFailedLogin(ctx context.Context, userID uuid.UUID, attemptAt time.Time, ip string) error
	RecordLastLogin(ctx context.Context, userID uuid.UUID, loginAt time.Time, ip string) error
}

// SessionCreateParams captures the state required to open a session record.
// SessionID and RefreshTokenJTI are generated by the caller so the refresh
// token and the session row agree before either is visible.
type SessionCreateParams struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	RefreshTokenJTI string
	FingerprintHash string
	DeviceName      string
	DeviceOS        string
	IPAddress       string
	UserAgent       string
	ExpiresAt       time.Time
	LastActivityAt  time.Time
}

// SessionRepository manages the persistent session lifecycle.
// FindActiveWithUser is the invariant-bearing read: it joins user and session
// filtered on both being active in one query, and every protected request
// goes through it, so disabling a session is immediately observable.
type SessionRepository interface {
	Create(ctx context.Context, params SessionCreateParams) (domain.Session, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error)
	FindActiveWithUser(ctx context.Context, userID, sessionID uuid.UUID) (domain.User, domain.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Session, error)
	TouchActivity(ctx context.Context, sessionID uuid.UUID, touchedAt time.Time) error
	Disable(ctx context.Context, sessionID uuid.UUID, disabledAt time.Time) error
	DisableAllByUser(ctx context.Context, userID uuid.UUID, disabledAt time.Time) error
	DisableExpired(ctx context.Context, before time.Time) (int64, error)
}

// LoginAttemptRepository stores login outcomes used by audit and history endpoints.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, since *time.Time, status string) ([]domain.LoginAttempt, error)
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of broker specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// IdempotencyRecord tracks a previously accepted mutating request.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyRepository enforces idempotent mutation semantics for register.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}
