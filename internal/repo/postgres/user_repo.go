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

type UsersRepo interface {
	Create(ctx context.Context, name, email, hash, phone, role string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindProvidersByName(ctx context.Context, name string) ([]domain.User, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
}

type UsersRepoImpl struct{ pool *pgxpool.Pool }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepoImpl { return &UsersRepoImpl{pool: pool} }

const userCols = `id, name, email, password_hash, phone, role, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user. A taken email surfaces as domain.ErrDuplicateEmail
// straight from the unique constraint, so concurrent registrations cannot
// both succeed.
func (r *UsersRepoImpl) Create(ctx context.Context, name, email, hash, phone, role string) (*domain.User, error) {
	const q = `
INSERT INTO users (name, email, password_hash, phone, role)
VALUES ($1,$2,$3,$4,$5)
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, name, email, hash, phone, role))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UsersRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *UsersRepoImpl) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *UsersRepoImpl) FindProvidersByName(ctx context.Context, name string) ([]domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role='provider' AND name=$1 ORDER BY id`
	return r.list(ctx, q, name)
}

func (r *UsersRepoImpl) ListProviders(ctx context.Context) ([]domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role='provider' ORDER BY name, id`
	return r.list(ctx, q)
}

func (r *UsersRepoImpl) list(ctx context.Context, q string, args ...any) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

var _ UsersRepo = (*UsersRepoImpl)(nil)
