package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by pgx.Tx and pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IdempotencyStore persists processed request keys per company.
type IdempotencyStore struct {
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// Claim records key inside the caller's transaction so it rolls back with the work it guards.
func (s *IdempotencyStore) Claim(ctx context.Context, db Execer, companyID uuid.UUID, key string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := db.Exec(ctx, `INSERT INTO idempotency_keys (company_id, key, created_at) VALUES ($1, $2, $3)`, companyID, key, s.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &ConflictError{Reason: ErrIdempotencyConflict.Error()}
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, db Execer, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := s.now().Add(-olderThan)
	_, err := db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
