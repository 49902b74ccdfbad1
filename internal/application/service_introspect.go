package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loginforge/authd/internal/domain"
)

// IntrospectResult is the internal-services view of a presented token.
// Active is false for expired, revoked, and session-less tokens; callers
// that need the distinction look at Expired.
type IntrospectResult struct {
	Active    bool
	Kind      domain.TokenKind
	Expired   bool
	UserID    uuid.UUID
	SessionID uuid.UUID
	Email     string
	Roles     []string
	ExpiresAt time.Time
}

// IntrospectToken verifies a raw token of the given kind for sibling services.
// Access and refresh tokens are additionally checked against revocation
// markers and the live session row.
func (s *Service) IntrospectToken(ctx context.Context, kind domain.TokenKind, raw string) (IntrospectResult, error) {
	verified, err := s.tokens.Verify(kind, raw)
	if err != nil {
		return IntrospectResult{}, err
	}

	result := IntrospectResult{
		Kind:      verified.Kind,
		Expired:   verified.Expired,
		ExpiresAt: verified.ExpiresAt,
		Active:    !verified.Expired,
	}

	switch payload := verified.Payload.(type) {
	case domain.AccessPayload:
		result.UserID = payload.UserID
		result.SessionID = payload.SessionID
		result.Email = payload.Email
		result.Roles = payload.Roles
	case domain.RefreshPayload:
		result.UserID = payload.UserID
		result.SessionID = payload.SessionID
	default:
		return result, nil
	}

	if revoked, err := s.revocations.IsRevoked(ctx, result.SessionID); err == nil && revoked {
		result.Active = false
		return result, nil
	}
	if _, _, err := s.sessions.FindActiveWithUser(ctx, result.UserID, result.SessionID); err != nil {
		result.Active = false
	}
	return result, nil
}
