package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// RetryPollerLockKey identifies the retry poller advisory lock
const RetryPollerLockKey int64 = 0x7265747279

// AdvisoryLocker grants a PostgreSQL session-level advisory lock. The lock is
// held on a dedicated connection until release is called.
type AdvisoryLocker struct {
	db     *sqlx.DB
	key    int64
	logger *slog.Logger
}

func NewAdvisoryLocker(db *sqlx.DB, key int64, logger *slog.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, key: key, logger: logger}
}

// TryLock attempts the lock without waiting
func (l *AdvisoryLocker) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock($1)`, l.key); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}

	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		// the scan context may already be canceled on shutdown
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			l.logger.Error("Failed to release advisory lock",
				slog.Int64("key", l.key),
				slog.Any("error", err),
			)
		}
		conn.Close()
	}

	return release, true, nil
}
