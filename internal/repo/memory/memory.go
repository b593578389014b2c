// Package memory holds in-process implementations of the postgres
// repository interfaces. They follow the same ownership and transition
// rules and are used by the service and handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/repo/postgres"
)

type Store struct {
	mu          sync.Mutex
	users       map[int64]*domain.User
	bookings    map[int64]*domain.Booking
	idempotency map[string]int64
	nextUser    int64
	nextBooking int64
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       map[int64]*domain.User{},
		bookings:    map[int64]*domain.Booking{},
		idempotency: map[string]int64{},
		now:         time.Now,
	}
}

func (s *Store) Users() *UsersRepo             { return &UsersRepo{s} }
func (s *Store) Bookings() *BookingsRepo       { return &BookingsRepo{s} }
func (s *Store) Idempotency() *IdempotencyRepo { return &IdempotencyRepo{s} }

type UsersRepo struct{ s *Store }

func (r *UsersRepo) Create(_ context.Context, name, email, hash, phone, role string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return nil, domain.ErrDuplicateEmail
		}
	}
	r.s.nextUser++
	u := &domain.User{
		ID: r.s.nextUser, Name: name, Email: email, PasswordHash: hash,
		Phone: phone, Role: role, CreatedAt: r.s.now(),
	}
	r.s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *UsersRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UsersRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UsersRepo) FindProvidersByName(_ context.Context, name string) ([]domain.User, error) {
	return r.providers(func(u *domain.User) bool { return u.Name == name }), nil
}

func (r *UsersRepo) ListProviders(_ context.Context) ([]domain.User, error) {
	return r.providers(func(*domain.User) bool { return true }), nil
}

func (r *UsersRepo) providers(keep func(*domain.User) bool) []domain.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if u.Role == domain.RoleProvider && keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type BookingsRepo struct{ s *Store }

func (r *BookingsRepo) Create(_ context.Context, customerID int64, in *domain.CreateBookingRequest) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insert(customerID, in)
}

func (r *BookingsRepo) CreateIdempotent(_ context.Context, customerID int64, in *domain.CreateBookingRequest, key string) (*domain.Booking, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := idemKey(customerID, key)
	if id, ok := r.s.idempotency[k]; ok {
		cp := *r.s.bookings[id]
		return &cp, true, nil
	}
	b, err := r.insert(customerID, in)
	if err != nil {
		return nil, false, err
	}
	r.s.idempotency[k] = b.ID
	return b, false, nil
}

// insert runs with s.mu held.
func (r *BookingsRepo) insert(customerID int64, in *domain.CreateBookingRequest) (*domain.Booking, error) {
	if _, ok := r.s.users[customerID]; !ok {
		return nil, domain.ErrUnauthenticated
	}
	r.s.nextBooking++
	now := r.s.now()
	b := &domain.Booking{
		ID: r.s.nextBooking, CustomerID: customerID, CustomerName: in.CustomerName,
		Service: in.Service, Provider: in.Provider, ProviderID: in.ProviderID,
		BookingDate: in.BookingDate, BookingTime: in.BookingTime,
		Address: in.Address, Notes: in.Notes, Status: domain.BookingPending,
		CreatedAt: now, UpdatedAt: now,
	}
	r.s.bookings[b.ID] = b
	cp := *b
	return &cp, nil
}

func (r *BookingsRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *BookingsRepo) ListByCustomer(_ context.Context, customerID int64) ([]domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.CustomerID == customerID }), nil
}

func (r *BookingsRepo) ListByProvider(_ context.Context, providerID int64, providerName string) ([]domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool {
		if b.ProviderID != nil {
			return *b.ProviderID == providerID
		}
		return b.Provider == providerName
	}), nil
}

func (r *BookingsRepo) list(keep func(*domain.Booking) bool) []domain.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BookingDate != b.BookingDate {
			return a.BookingDate > b.BookingDate
		}
		if a.BookingTime != b.BookingTime {
			return a.BookingTime > b.BookingTime
		}
		return a.ID > b.ID
	})
	return out
}

func (r *BookingsRepo) UpdateStatus(_ context.Context, id int64, actor *domain.Actor, status domain.BookingStatus) (*domain.Booking, error) {
	return r.transition(id, status, func(b *domain.Booking) bool { return b.ManageableBy(actor) })
}

func (r *BookingsRepo) Cancel(_ context.Context, id int64, customerID int64) (*domain.Booking, error) {
	return r.transition(id, domain.BookingCancelled, func(b *domain.Booking) bool { return b.CustomerID == customerID })
}

func (r *BookingsRepo) transition(id int64, to domain.BookingStatus, allowed func(*domain.Booking) bool) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	switch {
	case !ok:
		return nil, domain.ErrNotFound
	case !allowed(b):
		return nil, domain.ErrForbidden
	case !domain.CanTransition(b.Status, to):
		return nil, domain.ErrInvalidTransition
	}
	if b.Status != to {
		b.Status = to
		b.UpdatedAt = r.s.now()
	}
	cp := *b
	return &cp, nil
}

type IdempotencyRepo struct{ s *Store }

func idemKey(customerID int64, key string) string {
	return fmt.Sprintf("%d:%s", customerID, key)
}

func (r *IdempotencyRepo) Lookup(_ context.Context, customerID int64, key string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.idempotency[idemKey(customerID, key)], nil
}

func (r *IdempotencyRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

var (
	_ postgres.UsersRepo       = (*UsersRepo)(nil)
	_ postgres.BookingsRepo    = (*BookingsRepo)(nil)
	_ postgres.IdempotencyRepo = (*IdempotencyRepo)(nil)
)
