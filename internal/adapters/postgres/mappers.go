package postgres

import (
	"errors"
	"strings"

	"github.com/loginforge/authd/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:        row.UserID,
		Email:         row.Email,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		PasswordHash:  row.PasswordHash,
		Roles:         splitRoles(row.Roles),
		EmailVerified: row.EmailVerified,
		IsActive:      row.IsActive,
		MFA: domain.MFAConfig{
			Enabled:             row.MFAEnabled,
			TOTPSecretEncrypted: row.TOTPSecretEncrypted,
			OTPTokenEncrypted:   row.OTPTokenEncrypted,
		},
		LastLoginAt:    row.LastLoginAt,
		LastLoginIP:    derefString(row.LastLoginIP),
		LoginAttemptAt: row.LoginAttemptAt,
		LoginAttemptIP: derefString(row.LoginAttemptIP),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	return domain.Session{
		SessionID:       row.SessionID,
		UserID:          row.UserID,
		RefreshTokenJTI: row.RefreshTokenJTI,
		FingerprintHash: row.FingerprintHash,
		DeviceName:      row.DeviceName,
		DeviceOS:        row.DeviceOS,
		IPAddress:       derefString(row.IPAddress),
		UserAgent:       row.UserAgent,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt,
		LastActivityAt:  row.LastActivityAt,
		ExpiresAt:       row.ExpiresAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:            row.ID,
		UserID:        row.UserID,
		AttemptAt:     row.AttemptAt,
		IPAddress:     derefString(row.IPAddress),
		Status:        row.Status,
		FailureReason: row.FailureReason,
		DeviceName:    row.DeviceName,
		DeviceOS:      row.DeviceOS,
		UserAgent:     row.UserAgent,
	}
}

// splitRoles stores the role list as comma text; empty means no roles.
func splitRoles(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
