package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const IdempotencyTTL = 24 * time.Hour

// IdempotencyRepo reads the records BookingsRepo.CreateIdempotent writes.
// Keys are scoped per customer and stored hashed.
type IdempotencyRepo interface {
	// Lookup returns the booking id recorded for the key, or 0.
	Lookup(ctx context.Context, customerID int64, key string) (int64, error)
	// CleanupExpired removes expired idempotency records
	CleanupExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepoImpl struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{pool: pool}
}

func idempotencyHash(customerID int64, key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%d:%s", customerID, key))))
}

func (r *IdempotencyRepoImpl) Lookup(ctx context.Context, customerID int64, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var bookingID int64
	err := r.pool.QueryRow(ctx,
		`SELECT booking_id FROM booking_idempotency WHERE key_hash=$1 AND expires_at > now()`,
		idempotencyHash(customerID, key),
	).Scan(&bookingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bookingID, nil
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM booking_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var _ IdempotencyRepo = (*IdempotencyRepoImpl)(nil)
