package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so read helpers can run
// either standalone or inside a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultLockTimeout bounds row-lock waits when no timeout is configured.
const DefaultLockTimeout = 5 * time.Second

// txRunner opens transactions whose lock waits are bounded by lockTimeout.
type txRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// run executes fn inside one transaction. fn's error rolls everything back;
// lock timeouts and serialization failures come back as retryable sentinels.
func (r txRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		// SET LOCAL takes no bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return classifyPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}
