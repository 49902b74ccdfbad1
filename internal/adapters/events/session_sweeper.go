package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/loginforge/authd/internal/ports"
)

// SessionSweeper periodically disables session rows past their expiry so the
// sessions table converges with what verification already rejects.
type SessionSweeper struct {
	logger   *slog.Logger
	sessions ports.SessionRepository
	interval time.Duration
}

func NewSessionSweeper(logger *slog.Logger, sessions ports.SessionRepository, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{
		logger:   logger,
		sessions: sessions,
		interval: interval,
	}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		count, err := w.sessions.DisableExpired(ctx, time.Now().UTC())
		if err != nil {
			w.logger.ErrorContext(ctx, "session sweep iteration failed",
				"module", "events.session_sweeper",
				"layer", "adapter",
				"operation", "disable_expired_sessions",
				"outcome", "failure",
				"error", err,
			)
		} else if count > 0 {
			w.logger.InfoContext(ctx, "expired sessions disabled",
				"module", "events.session_sweeper",
				"layer", "adapter",
				"operation", "disable_expired_sessions",
				"outcome", "success",
				"disabled_count", count,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
