package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxAttempts bounds how often WithTx runs a transaction that keeps losing
// serialization races.
const TxAttempts = 5

const retryBase = 10 * time.Millisecond

// WithTx runs fn in a RepeatableRead transaction. Serialization failures and
// deadlocks roll back and run fn again with a fresh snapshot, up to TxAttempts
// times, so fn must not leak side effects outside tx.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return retry(ctx, TxAttempts, func() error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// Retryable reports whether err is a concurrency failure that a fresh
// transaction may not hit again.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}

func retry(ctx context.Context, attempts int, run func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = run(); err == nil || !Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if werr := wait(ctx, jitter(retryBase<<attempt)); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return fmt.Errorf("platform/db: gave up after %d attempts: %w", attempts, err)
}

// jitter returns a random duration in [d/2, d).
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
