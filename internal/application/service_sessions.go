package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
)

// ListSessions returns the caller's sessions, newest first, with the current
// session flagged so clients can render "this device".
func (s *Service) ListSessions(ctx context.Context, userID, currentSessionID uuid.UUID, page, limit int) ([]SessionItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	items := make([]SessionItem, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, toSessionItem(sess, currentSessionID))
	}
	return items, nil
}

// RevokeSessionByID lets a user kill one of their own sessions remotely.
// Revoking a session that belongs to someone else is indistinguishable from
// revoking one that does not exist.
func (s *Service) RevokeSessionByID(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return domain.ErrSessionNotFound
	}

	now := s.nowFn()
	if err := s.sessions.Disable(ctx, sessionID, now); err != nil {
		return err
	}
	if err := s.revocations.MarkRevoked(ctx, sessionID, session.ExpiresAt); err != nil {
		svcLogger().WarnContext(ctx, "failed to plant revocation marker",
			"operation", "revoke_session",
			"outcome", "partial",
			"session_id", sessionID,
			"error", err,
		)
	}
	s.enqueueEvent(ctx, EventSessionRevoked, userID.String(), map[string]any{
		"user_id":    userID.String(),
		"session_id": sessionID.String(),
		"revoked_at": now.Format(time.RFC3339),
		"reason":     "user_revoked",
	})
	return nil
}

// RevokeAllSessions disables every session the user holds. The caller's own
// session goes too; clients should expect to re-authenticate.
func (s *Service) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	sessions, err := s.sessions.ListByUser(ctx, userID, 200, 0)
	if err != nil {
		return err
	}
	now := s.nowFn()
	if err := s.sessions.DisableAllByUser(ctx, userID, now); err != nil {
		return err
	}
	for _, sess := range sessions {
		if !sess.IsActive {
			continue
		}
		if err := s.revocations.MarkRevoked(ctx, sess.SessionID, sess.ExpiresAt); err != nil {
			svcLogger().WarnContext(ctx, "failed to plant revocation marker",
				"operation", "revoke_all_sessions",
				"outcome", "partial",
				"session_id", sess.SessionID,
				"error", err,
			)
		}
	}
	s.enqueueEvent(ctx, EventSessionRevoked, userID.String(), map[string]any{
		"user_id":    userID.String(),
		"revoked_at": now.Format(time.RFC3339),
		"reason":     "user_revoked_all",
	})
	return nil
}

// ListLoginHistory returns the user's recorded login attempts.
func (s *Service) ListLoginHistory(ctx context.Context, userID uuid.UUID, q LoginHistoryQuery) ([]LoginHistoryItem, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Page < 1 {
		q.Page = 1
	}
	var since *time.Time
	if q.Days > 0 {
		cutoff := s.nowFn().AddDate(0, 0, -q.Days)
		since = &cutoff
	}
	attempts, err := s.loginAttempts.ListByUser(ctx, userID, q.Limit, (q.Page-1)*q.Limit, since, q.Status)
	if err != nil {
		return nil, err
	}
	items := make([]LoginHistoryItem, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, LoginHistoryItem{
			ID:            a.ID,
			Timestamp:     a.AttemptAt,
			Status:        a.Status,
			FailureReason: a.FailureReason,
			IPAddress:     a.IPAddress,
			DeviceName:    a.DeviceName,
			DeviceOS:      a.DeviceOS,
		})
	}
	return items, nil
}
