package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	DemoEmail    = "testuser@example.com"
	DemoPassword = "Password123"
)

// SeedDemo inserts a demo customer with two bookings. It does nothing when
// the demo user already exists. passwordHash must be the encoded hash of
// DemoPassword.
func (db *DB) SeedDemo(ctx context.Context, passwordHash string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, phone, role)
		VALUES ('Test User', $1, $2, '9876543210', 'customer')
		ON CONFLICT (email) DO NOTHING
		RETURNING id`, DemoEmail, passwordHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		// already seeded
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (customer_id, customer_name, service, provider, booking_date, booking_time, address, notes, status)
		VALUES
		  ($1, 'Test User', 'Plumbing', 'Pipe Pros', CURRENT_DATE + 3, '10:00', '12 Main Street', 'Kitchen sink leak', 'Pending'),
		  ($1, 'Test User', 'Cleaning', 'Sparkle Co', CURRENT_DATE + 7, '14:30', '12 Main Street', '', 'Accepted')`,
		userID)
	if err != nil {
		return fmt.Errorf("seed bookings: %w", err)
	}

	return tx.Commit(ctx)
}
