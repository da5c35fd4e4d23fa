package ledger

import (
	"context"             // Context for cancellation and timeouts
	"database/sql/driver" // Driver error values
	"errors"              // Error checks
	"time"                // Time durations

	"github.com/go-sql-driver/mysql" // MySQL error numbers
	"github.com/mattn/go-sqlite3"    // SQLite error codes
	"github.com/sirupsen/logrus"     // Logging
)

// MySQL server error numbers
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// conflict reports lock contention that a fresh transaction can resolve
func conflict(err error) bool {
	if errors.Is(err, errBalanceChanged) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// isTransient reports failures whose outcome a caller may retry
func isTransient(err error) bool {
	return conflict(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn)
}

// withTxRetry runs fn again while it fails with lock contention, up to txRetries extra times
func (s *Store) withTxRetry(ctx context.Context, transferID string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !conflict(err) || attempt >= s.txRetries {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"transfer_id": transferID,
			"attempt":     attempt + 1,
			"error":       err.Error(),
		}).Warn("Retrying transfer transaction")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
}
