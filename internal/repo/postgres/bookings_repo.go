package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingsRepo interface {
	Create(ctx context.Context, customerID int64, in *domain.CreateBookingRequest) (*domain.Booking, error)
	// CreateIdempotent creates the booking and claims the customer's
	// Idempotency-Key in one transaction. When the key already names a
	// live booking, nothing is inserted and that booking is returned with
	// replayed set.
	CreateIdempotent(ctx context.Context, customerID int64, in *domain.CreateBookingRequest, key string) (b *domain.Booking, replayed bool, err error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Booking, error)
	ListByProvider(ctx context.Context, providerID int64, providerName string) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, actor *domain.Actor, status domain.BookingStatus) (*domain.Booking, error)
	Cancel(ctx context.Context, id int64, customerID int64) (*domain.Booking, error)
}

type BookingsRepoImpl struct{ pool *pgxpool.Pool }

func NewBookingsRepo(pool *pgxpool.Pool) *BookingsRepoImpl { return &BookingsRepoImpl{pool: pool} }

const bookingCols = `id, customer_id, customer_name, service, provider, provider_id,
to_char(booking_date, 'YYYY-MM-DD'), to_char(booking_time, 'HH24:MI'),
address, notes, status, created_at, updated_at`

const bookingOrder = ` ORDER BY booking_date DESC, booking_time DESC, id DESC`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CustomerName, &b.Service, &b.Provider, &b.ProviderID,
		&b.BookingDate, &b.BookingTime,
		&b.Address, &b.Notes, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	return &b, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertBooking = `INSERT INTO bookings (
    customer_id, customer_name, service, provider, provider_id,
    booking_date, booking_time, address, notes, status
  ) VALUES ($1,$2,$3,$4,$5,$6::date,$7::time,$8,$9,'Pending')
  RETURNING ` + bookingCols

func insertBookingRow(ctx context.Context, q querier, customerID int64, in *domain.CreateBookingRequest) (*domain.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, insertBooking,
		customerID, in.CustomerName, in.Service, in.Provider, in.ProviderID,
		in.BookingDate, in.BookingTime, in.Address, in.Notes,
	))
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			// the token names a user that no longer exists
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

// Create stores a Pending booking. in.CustomerName must already be filled.
func (r *BookingsRepoImpl) Create(ctx context.Context, customerID int64, in *domain.CreateBookingRequest) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return insertBookingRow(ctx, r.pool, customerID, in)
}

// claimKey takes over an expired record but leaves a live one alone, in
// which case no row comes back. A concurrent claim of the same key waits
// on the primary key until the first transaction settles.
const claimKey = `
INSERT INTO booking_idempotency (key_hash, booking_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key_hash) DO UPDATE
SET booking_id = EXCLUDED.booking_id, expires_at = EXCLUDED.expires_at
WHERE booking_idempotency.expires_at <= now()
RETURNING booking_id`

func (r *BookingsRepoImpl) CreateIdempotent(ctx context.Context, customerID int64, in *domain.CreateBookingRequest, key string) (*domain.Booking, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	hash := idempotencyHash(customerID, key)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := insertBookingRow(ctx, tx, customerID, in)
	if err != nil {
		return nil, false, err
	}

	var claimed int64
	err = tx.QueryRow(ctx, claimKey, hash, b.ID, time.Now().Add(IdempotencyTTL)).Scan(&claimed)
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit booking: %w", err)
		}
		return b, false, nil
	case errors.Is(err, pgx.ErrNoRows):
		// someone else owns the key; our insert is discarded
	default:
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		return nil, false, fmt.Errorf("rollback: %w", err)
	}

	const q = `SELECT ` + bookingCols + ` FROM bookings
WHERE id = (SELECT booking_id FROM booking_idempotency WHERE key_hash=$1)`
	existing, err := scanBooking(r.pool.QueryRow(ctx, q, hash))
	if err != nil {
		return nil, false, fmt.Errorf("load recorded booking: %w", err)
	}
	return existing, true, nil
}

func (r *BookingsRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *BookingsRepoImpl) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE customer_id=$1` + bookingOrder
	return r.list(ctx, q, customerID)
}

// ListByProvider matches on provider_id, and on the provider name only for
// rows that were never linked to a provider identity.
func (r *BookingsRepoImpl) ListByProvider(ctx context.Context, providerID int64, providerName string) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
WHERE provider_id=$1 OR (provider_id IS NULL AND provider=$2)` + bookingOrder
	return r.list(ctx, q, providerID, providerName)
}

func (r *BookingsRepoImpl) list(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateStatus changes the status in one statement that also checks
// ownership and the transition table, so a concurrent change cannot slip
// between the check and the write.
func (r *BookingsRepoImpl) UpdateStatus(ctx context.Context, id int64, actor *domain.Actor, status domain.BookingStatus) (*domain.Booking, error) {
	const q = `UPDATE bookings
SET status=$3,
    updated_at = CASE WHEN status=$3 THEN updated_at ELSE now() END
WHERE id=$1
  AND status = ANY($4)
  AND (customer_id=$2
       OR provider_id=$2
       OR ($6='provider' AND provider_id IS NULL AND provider=$5))
RETURNING ` + bookingCols

	b, err := r.conditionalUpdate(ctx, q, id, actor.ID, string(status), sources(status), actor.Name, actor.Role)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	return nil, r.classifyMiss(ctx, id, func(cur *domain.Booking) bool { return cur.ManageableBy(actor) })
}

// Cancel is a soft delete: the row stays with status Cancelled. Only the
// customer who made the booking may cancel it.
func (r *BookingsRepoImpl) Cancel(ctx context.Context, id int64, customerID int64) (*domain.Booking, error) {
	const q = `UPDATE bookings
SET status='Cancelled',
    updated_at = CASE WHEN status='Cancelled' THEN updated_at ELSE now() END
WHERE id=$1 AND customer_id=$2 AND status = ANY($3)
RETURNING ` + bookingCols

	b, err := r.conditionalUpdate(ctx, q, id, customerID, sources(domain.BookingCancelled))
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	return nil, r.classifyMiss(ctx, id, func(cur *domain.Booking) bool { return cur.CustomerID == customerID })
}

func (r *BookingsRepoImpl) conditionalUpdate(ctx context.Context, q string, args ...any) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return b, nil
}

// classifyMiss explains why a conditional update touched no row. Existence
// is checked before ownership so an unknown id is always ErrNotFound.
func (r *BookingsRepoImpl) classifyMiss(ctx context.Context, id int64, allowed func(*domain.Booking) bool) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	switch {
	case cur == nil:
		return domain.ErrNotFound
	case !allowed(cur):
		return domain.ErrForbidden
	default:
		return domain.ErrInvalidTransition
	}
}

func sources(to domain.BookingStatus) []string {
	from := domain.AllowedSources(to)
	out := make([]string, len(from))
	for i, s := range from {
		out[i] = string(s)
	}
	return out
}

var _ BookingsRepo = (*BookingsRepoImpl)(nil)
