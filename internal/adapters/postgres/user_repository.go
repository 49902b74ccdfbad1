package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateUserTxParams, outboxEvent ports.OutboxEvent) (domain.User, error) {
	var result domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := userModel{
			Email:         params.Email,
			FirstName:     params.FirstName,
			LastName:      params.LastName,
			PasswordHash:  params.PasswordHash,
			Roles:         joinRoles(params.Roles),
			EmailVerified: params.EmailVerified,
			IsActive:      true,
			CreatedAt:     params.RegisteredAtUTC,
			UpdatedAt:     params.RegisteredAtUTC,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		// Late-bind the generated id into the event payload.
		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		var payloadObj map[string]any
		if err := json.Unmarshal(payload, &payloadObj); err == nil {
			payloadObj["user_id"] = rec.UserID.String()
			if adjusted, mErr := json.Marshal(payloadObj); mErr == nil {
				payload = adjusted
			}
		}

		outbox := authOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: rec.UserID.String(),
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
			FirstSeenAt:  outboxEvent.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}

		result = toDomainUser(rec)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	return r.updateColumns(ctx, userID, map[string]any{
		"password_hash": passwordHash,
		"updated_at":    updatedAt,
	})
}

func (r *userRepository) SetEmailVerified(ctx context.Context, userID uuid.UUID, verified bool, updatedAt time.Time) error {
	return r.updateColumns(ctx, userID, map[string]any{
		"email_verified": verified,
		"updated_at":     updatedAt,
	})
}

func (r *userRepository) UpdateMFA(ctx context.Context, userID uuid.UUID, mfa domain.MFAConfig, updatedAt time.Time) error {
	return r.updateColumns(ctx, userID, map[string]any{
		"mfa_enabled":           mfa.Enabled,
		"totp_secret_encrypted": mfa.TOTPSecretEncrypted,
		"otp_token_encrypted":   mfa.OTPTokenEncrypted,
		"updated_at":            updatedAt,
	})
}

func (r *userRepository) RecordFailedLogin(ctx context.Context, userID uuid.UUID, attemptAt time.Time, ip string) error {
	return r.updateColumns(ctx, userID, map[string]any{
		"login_attempt_at": attemptAt,
		"login_attempt_ip": nullableString(ip),
		"updated_at":       attemptAt,
	})
}

func (r *userRepository) RecordLastLogin(ctx context.Context, userID uuid.UUID, loginAt time.Time, ip string) error {
	return r.updateColumns(ctx, userID, map[string]any{
		"last_login_at":    loginAt,
		"last_login_ip":    nullableString(ip),
		"login_attempt_at": nil,
		"login_attempt_ip": nil,
		"updated_at":       loginAt,
	})
}

func (r *userRepository) updateColumns(ctx context.Context, userID uuid.UUID, cols map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
