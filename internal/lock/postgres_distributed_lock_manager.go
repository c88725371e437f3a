package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const lockTimeout = 5 * time.Second

// PostgresDistributedLockManager implements DistributedLockManager on
// Postgres session-scoped advisory locks. Advisory locks belong to the
// session that took them, so each held lock pins a dedicated connection out
// of the pool: lock and unlock must travel over that one connection, and
// the connection goes back to the pool only after the unlock.
type PostgresDistributedLockManager struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[int]*sql.Conn
}

func NewPostgresDistributedLockManager(db *sql.DB) *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{
		db:    db,
		conns: make(map[int]*sql.Conn),
	}
}

func (l *PostgresDistributedLockManager) Acquire(lockID int) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[lockID]; held {
		return fmt.Errorf("lock %d is already held", lockID)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to pin connection for lock %d: %w", lockID, err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		conn.Close()
		return fmt.Errorf("failed to acquire lock %d: %w", lockID, err)
	}

	l.conns[lockID] = conn
	return nil
}

func (l *PostgresDistributedLockManager) Release(lockID int) error {
	l.mu.Lock()
	conn, held := l.conns[lockID]
	delete(l.conns, lockID)
	l.mu.Unlock()

	if !held {
		return fmt.Errorf("lock %d is not held", lockID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	var released bool
	err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released)
	if cErr := conn.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return fmt.Errorf("failed to release lock %d: %w", lockID, err)
	}
	if !released {
		return fmt.Errorf("lock %d was not held by this session", lockID)
	}
	return nil
}
