package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	rec := sessionModel{
		SessionID:       params.SessionID,
		UserID:          params.UserID,
		RefreshTokenJTI: params.RefreshTokenJTI,
		FingerprintHash: params.FingerprintHash,
		DeviceName:      params.DeviceName,
		DeviceOS:        params.DeviceOS,
		IPAddress:       nullableString(params.IPAddress),
		UserAgent:       params.UserAgent,
		IsActive:        true,
		CreatedAt:       params.LastActivityAt,
		LastActivityAt:  params.LastActivityAt,
		ExpiresAt:       params.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

// FindActiveWithUser joins the session with its user in one read, filtered on
// both rows being active and an exact id match. Every protected request runs
// through here, which is what makes session disablement immediately
// observable regardless of token expiry.
func (r *sessionRepository) FindActiveWithUser(ctx context.Context, userID, sessionID uuid.UUID) (domain.User, domain.Session, error) {
	var row struct {
		userModel    `gorm:"embedded"`
		SessionRow   sessionModel `gorm:"embedded;embeddedPrefix:s_"`
	}
	err := r.db.WithContext(ctx).
		Table("sessions").
		Select("users.*, sessions.session_id AS s_session_id, sessions.user_id AS s_user_id, sessions.refresh_token_jti AS s_refresh_token_jti, sessions.fingerprint_hash AS s_fingerprint_hash, sessions.device_name AS s_device_name, sessions.device_os AS s_device_os, sessions.ip_address AS s_ip_address, sessions.user_agent AS s_user_agent, sessions.is_active AS s_is_active, sessions.created_at AS s_created_at, sessions.last_activity_at AS s_last_activity_at, sessions.expires_at AS s_expires_at").
		Joins("INNER JOIN users ON users.user_id = sessions.user_id").
		Where("sessions.session_id = ?", sessionID).
		Where("sessions.user_id = ?", userID).
		Where("sessions.is_active = TRUE").
		Where("users.is_active = TRUE").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.User{}, domain.Session{}, err
	}
	return toDomainUser(row.userModel), toDomainSession(row.SessionRow), nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Session, error) {
	var rows []sessionModel
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Session, 0, len(rows))
	for _, item := range rows {
		result = append(result, toDomainSession(item))
	}
	return result, nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, sessionID uuid.UUID, touchedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Update("last_activity_at", touchedAt).Error
}

func (r *sessionRepository) Disable(ctx context.Context, sessionID uuid.UUID, disabledAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", sessionID).
		Where("is_active = TRUE").
		Updates(map[string]any{
			"is_active":        false,
			"last_activity_at": disabledAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&sessionModel{}).Where("session_id = ?", sessionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrSessionNotFound
		}
	}
	return nil
}

func (r *sessionRepository) DisableAllByUser(ctx context.Context, userID uuid.UUID, disabledAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("user_id = ?", userID).
		Where("is_active = TRUE").
		Updates(map[string]any{
			"is_active":        false,
			"last_activity_at": disabledAt,
		}).Error
}

func (r *sessionRepository) DisableExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("is_active = TRUE").
		Where("expires_at < ?", before).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
