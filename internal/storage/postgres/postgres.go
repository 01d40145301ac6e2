package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/observability"
)

// DefaultLockTimeout bounds how long a write transaction waits for row locks.
const DefaultLockTimeout = 5 * time.Second

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
	lockTimeout time.Duration
}

// PoolOption configures a Pool.
type PoolOption func(*pgxpool.Config, *Pool)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config, _ *Pool) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithLockTimeout sets the per-transaction lock_timeout used by writes.
func WithLockTimeout(d time.Duration) PoolOption {
	return func(_ *pgxpool.Config, p *Pool) {
		if d > 0 {
			p.lockTimeout = d
		}
	}
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	p := &Pool{lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(config, p)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p.Pool = pool
	return p, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// inTx runs fn in a transaction with lock_timeout applied. The transaction
// commits when fn returns nil and rolls back otherwise.
func (p *Pool) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
		return fn(tx)
	})
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation   = "23505" // unique_violation
	pgErrLockNotAvailable  = "55P03" // lock_not_available
	pgErrCheckViolation    = "23514" // check_violation
	pgErrNotNullViolation  = "23502" // not_null_violation
	pgErrInvalidTextFormat = "22P02" // invalid_text_representation
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return pgCode(err) == pgErrUniqueViolation
}

// isInvalidInputError checks for constraint failures caused by bad values.
func isInvalidInputError(err error) bool {
	switch pgCode(err) {
	case pgErrCheckViolation, pgErrNotNullViolation, pgErrInvalidTextFormat:
		return true
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// wrapErr classifies a driver error as a storage failure. Lock timeouts
// surface the same way so callers can retry.
func wrapErr(op string, err error) error {
	if pgCode(err) == pgErrLockNotAvailable {
		return fmt.Errorf("%w: %s: lock timeout: %v", domain.ErrStorage, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}

func observe(op string, start time.Time, err error) {
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
}
