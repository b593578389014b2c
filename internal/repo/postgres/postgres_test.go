package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/pkg/config"
	"github.com/diagnosis/service-sphere/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and empties every table. The
// tests are skipped when the variable is not set.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.Connect(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.ApplySchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE booking_idempotency, bookings, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func mustUser(t *testing.T, repo *UsersRepoImpl, name, email, role string) *domain.User {
	t.Helper()
	u, err := repo.Create(context.Background(), name, email, "$2a$10$hash", "555", role)
	require.NoError(t, err)
	return u
}

func bookingReq(provider, date, clock string) *domain.CreateBookingRequest {
	return &domain.CreateBookingRequest{
		CustomerName: "Alice", Service: "Plumbing", Provider: provider,
		BookingDate: date, BookingTime: clock, Address: "1 Main St",
	}
}

func TestUsersRepo(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	ctx := context.Background()

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)
	assert.NotZero(t, alice.ID)

	_, err := users.Create(ctx, "Alice2", "alice@x.io", "h", "1", domain.RoleCustomer)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	got, err := users.FindByEmail(ctx, "alice@x.io")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	missing, err := users.FindByEmail(ctx, "nobody@x.io")
	require.NoError(t, err)
	assert.Nil(t, missing)

	mustUser(t, users, "Zed", "zed@x.io", domain.RoleProvider)
	mustUser(t, users, "Bob", "bob@x.io", domain.RoleProvider)
	providers, err := users.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "Bob", providers[0].Name)

	byName, err := users.FindProvidersByName(ctx, "Bob")
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}

func TestBookingsRepoLifecycle(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	bookings := NewBookingsRepo(db.Pool)
	ctx := context.Background()

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)
	carol := mustUser(t, users, "Carol", "carol@x.io", domain.RoleCustomer)
	bob := mustUser(t, users, "Bob", "bob@x.io", domain.RoleProvider)

	req := bookingReq("Bob", "2024-03-01", "10:00")
	req.ProviderID = &bob.ID
	b, err := bookings.Create(ctx, alice.ID, req)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, "2024-03-01", b.BookingDate)
	assert.Equal(t, "10:00", b.BookingTime)

	aliceActor := &domain.Actor{ID: alice.ID, Name: alice.Name, Role: domain.RoleCustomer}
	carolActor := &domain.Actor{ID: carol.ID, Name: carol.Name, Role: domain.RoleCustomer}
	bobActor := &domain.Actor{ID: bob.ID, Name: bob.Name, Role: domain.RoleProvider}

	_, err = bookings.UpdateStatus(ctx, b.ID, carolActor, domain.BookingAccepted)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = bookings.UpdateStatus(ctx, 9999, aliceActor, domain.BookingAccepted)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := bookings.UpdateStatus(ctx, b.ID, bobActor, domain.BookingAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingAccepted, updated.Status)

	_, err = bookings.UpdateStatus(ctx, b.ID, aliceActor, domain.BookingPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = bookings.Cancel(ctx, b.ID, carol.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := bookings.Cancel(ctx, b.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	again, err := bookings.Cancel(ctx, b.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.UpdatedAt, again.UpdatedAt)

	_, err = bookings.Cancel(ctx, 9999, alice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingsRepoListing(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	bookings := NewBookingsRepo(db.Pool)
	ctx := context.Background()

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)
	bob := mustUser(t, users, "Bob", "bob@x.io", domain.RoleProvider)

	linked := bookingReq("Bob", "2024-03-01", "09:00")
	linked.ProviderID = &bob.ID
	_, err := bookings.Create(ctx, alice.ID, linked)
	require.NoError(t, err)
	_, err = bookings.Create(ctx, alice.ID, bookingReq("Bob", "2024-03-05", "08:00"))
	require.NoError(t, err)
	_, err = bookings.Create(ctx, alice.ID, bookingReq("Bob", "2024-03-01", "15:30"))
	require.NoError(t, err)
	_, err = bookings.Create(ctx, alice.ID, bookingReq("Dana", "2024-04-01", "08:00"))
	require.NoError(t, err)

	mine, err := bookings.ListByCustomer(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 4)
	assert.Equal(t, "2024-04-01", mine[0].BookingDate)
	assert.Equal(t, "2024-03-05", mine[1].BookingDate)
	assert.Equal(t, "15:30", mine[2].BookingTime)
	assert.Equal(t, "09:00", mine[3].BookingTime)

	forBob, err := bookings.ListByProvider(ctx, bob.ID, bob.Name)
	require.NoError(t, err)
	assert.Len(t, forBob, 3)

	none, err := bookings.ListByCustomer(ctx, 12345)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestIdempotencyRepo(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	bookings := NewBookingsRepo(db.Pool)
	idem := NewIdempotencyRepo(db.Pool)
	ctx := context.Background()

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)
	b, err := bookings.Create(ctx, alice.ID, bookingReq("Bob", "2024-03-01", "10:00"))
	require.NoError(t, err)

	id, err := idem.Lookup(ctx, alice.ID, "key-1")
	require.NoError(t, err)
	assert.Zero(t, id)

	created, replayed, err := bookings.CreateIdempotent(ctx, alice.ID, bookingReq("Bob", "2024-03-02", "11:00"), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, b.ID, created.ID)

	id, err = idem.Lookup(ctx, alice.ID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)

	again, replayed, err := bookings.CreateIdempotent(ctx, alice.ID, bookingReq("Bob", "2024-03-02", "11:00"), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, created.ID, again.ID)

	other, err := idem.Lookup(ctx, alice.ID+1, "key-1")
	require.NoError(t, err)
	assert.Zero(t, other, "keys are scoped per customer")

	n, err := idem.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateIdempotentConcurrentSameKey(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	bookings := NewBookingsRepo(db.Pool)
	ctx := context.Background()

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[int64]int{}
	replayed := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, again, err := bookings.CreateIdempotent(ctx, alice.ID, bookingReq("Bob", "2024-03-01", "10:00"), "retry-after-timeout")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[b.ID]++
			if again {
				replayed++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "every attempt must see the same booking")
	assert.Equal(t, attempts-1, replayed)

	mine, err := bookings.ListByCustomer(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestBookingTimeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	users := NewUsersRepo(db.Pool)
	bookings := NewBookingsRepo(db.Pool)

	alice := mustUser(t, users, "Alice", "alice@x.io", domain.RoleCustomer)
	b, err := bookings.Create(context.Background(), alice.ID, bookingReq("Bob", "2024-12-31", "23:59"))
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", b.BookingDate)
	assert.Equal(t, "23:59", b.BookingTime)
}
