// Package lock provides MySQL advisory locking for dentsync runs.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate run detection.
	TimeoutShort = 1

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10

	// TimeoutLong allows queueing behind a running replication.
	TimeoutLong = 60
)

// AdvisoryLock represents a MySQL advisory lock used to keep two dentsync
// processes from replicating the same table set concurrently. It uses
// MySQL's GET_LOCK() function; the lock is automatically released when the
// connection closes or RELEASE_LOCK() is called.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
		held:     false,
	}
}

// AcquireLock attempts to acquire the advisory lock with the specified timeout.
// Returns true if the lock was acquired, false if the timeout was reached.
//
// MySQL GET_LOCK() return values:
//   - 1: lock obtained
//   - 0: timeout reached without obtaining the lock
//   - NULL: an error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil // Already holding the lock
	}

	query := "SELECT GET_LOCK(?, ?)"
	var result sql.NullInt64

	err := a.db.QueryRowContext(ctx, query, a.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = true
		return true, nil
	case 0:
		// Timeout reached - another instance is holding the lock
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// ReleaseLock releases the advisory lock.
// Returns true if the lock was released, false if the lock was not held.
//
// Locks are automatically released when the database connection closes, but
// explicit release is preferred for proper cleanup.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil // Not holding the lock
	}

	query := "SELECT RELEASE_LOCK(?)"
	var result sql.NullInt64

	err := a.db.QueryRowContext(ctx, query, a.lockName).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}

	if !result.Valid {
		a.held = false // Update state even if NULL
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = false
		return true, nil
	case 0:
		// Lock was not established by this thread
		a.held = false
		return false, nil
	default:
		return false, fmt.Errorf("unexpected RELEASE_LOCK return value: %d", result.Int64)
	}
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock immediately without waiting.
// Returns true if acquired, false if the lock is already held elsewhere.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail attempts to acquire the lock with a short timeout.
// Returns ErrLockTimeout if another instance is holding the lock.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateRunLockName creates a consistent lock name for a replication run
// scope (a table name, or "all" for full runs). Lock names follow the format
// "dentsync:run:{scope}" to avoid conflicts with other MySQL advisory locks.
func GenerateRunLockName(scope string) string {
	// Sanitize the scope to prevent lock name conflicts
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, scope)

	return fmt.Sprintf("dentsync:run:%s", sanitized)
}

// NewRunLock creates an advisory lock for a replication run scope.
// The lock name is generated with GenerateRunLockName. Taking the lock on the
// target keeps two processes from interleaving writes to the same tables and
// the shared copy-status table.
func NewRunLock(db *sql.DB, scope string) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateRunLockName(scope))
}

// IsRunActive checks whether a replication run for the given scope is
// currently holding the lock, without keeping the lock.
//
// The check is not atomic - the state can change immediately after it returns.
func IsRunActive(ctx context.Context, db *sql.DB, scope string) (bool, error) {
	l := NewRunLock(db, scope)

	acquired, err := l.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check run lock for %q: %w", scope, err)
	}

	if acquired {
		// We got the lock, so nothing was running; release it again.
		if _, releaseErr := l.ReleaseLock(ctx); releaseErr != nil {
			_ = releaseErr // auto-releases on connection close
		}
		return false, nil
	}

	return true, nil
}

// WithLock executes fn while holding the advisory lock, releasing it on every
// exit path including panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// Release with a fresh context so a cancelled run context does not
		// block the cleanup.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, releaseErr := a.ReleaseLock(releaseCtx); releaseErr != nil {
			_ = releaseErr // auto-releases on connection close
		}
	}()

	return fn()
}

// WithRunLock executes fn while holding the run lock for scope, using
// TimeoutShort for fast duplicate detection.
func WithRunLock(ctx context.Context, db *sql.DB, scope string, fn func() error) error {
	l := NewRunLock(db, scope)
	return l.WithLock(ctx, TimeoutShort, fn)
}
