package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequestValidate(t *testing.T) {
	ok := RegisterRequest{Name: "Alice", Email: "alice@x.io", Password: "secret1", Phone: "555", Role: RoleCustomer}
	require.NoError(t, ok.Validate())

	bad := RegisterRequest{Name: "  ", Email: "nope", Password: "12345", Phone: " ", Role: "admin"}
	bad.Normalize()
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, []FieldError{
		{Field: "name", Message: "Name is required"},
		{Field: "email", Message: "Valid email is required"},
		{Field: "password", Message: "Password must be at least 6 characters"},
		{Field: "phone", Message: "Phone is required"},
		{Field: "role", Message: "Invalid role"},
	}, v.Errors)
}

func TestRegisterRequestPasswordLength(t *testing.T) {
	r := RegisterRequest{Name: "Alice", Email: "alice@x.io", Phone: "555", Role: RoleCustomer}

	r.Password = strings.Repeat("a", MaxPasswordBytes)
	require.NoError(t, r.Validate())

	r.Password = strings.Repeat("a", MaxPasswordBytes+1)
	var v *ValidationError
	require.True(t, errors.As(r.Validate(), &v))
	assert.Equal(t, []FieldError{{Field: "password", Message: "Password must be at most 72 bytes"}}, v.Errors)

	// multi-byte runes count by byte
	r.Password = strings.Repeat("é", 37)
	assert.Error(t, r.Validate())
}

func TestRegisterNormalizeKeepsEmailCase(t *testing.T) {
	r := RegisterRequest{Email: "  Alice@X.io "}
	r.Normalize()
	assert.Equal(t, "Alice@X.io", r.Email)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingAccepted, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingAccepted, BookingCompleted, true},
		{BookingAccepted, BookingCancelled, true},
		{BookingAccepted, BookingPending, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingCancelled, BookingPending, false},
		{BookingCancelled, BookingCancelled, true},
		{BookingCompleted, BookingCompleted, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAllowedSources(t *testing.T) {
	assert.ElementsMatch(t, []BookingStatus{BookingCancelled, BookingPending, BookingAccepted}, AllowedSources(BookingCancelled))
	assert.ElementsMatch(t, []BookingStatus{BookingCompleted, BookingAccepted}, AllowedSources(BookingCompleted))
	assert.ElementsMatch(t, []BookingStatus{BookingPending}, AllowedSources(BookingPending))
}

func TestCreateBookingRequestValidate(t *testing.T) {
	r := CreateBookingRequest{
		Service: "Plumbing", Provider: "Bob", BookingDate: "2024-03-01",
		BookingTime: "10:00", Address: "1 Main St",
	}
	require.NoError(t, r.Validate())

	r = CreateBookingRequest{BookingDate: "tomorrow", BookingTime: "25:00"}
	var v *ValidationError
	require.True(t, errors.As(r.Validate(), &v))
	fields := make([]string, 0, len(v.Errors))
	for _, f := range v.Errors {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"service", "provider", "booking_date", "booking_time", "address"}, fields)

	r = CreateBookingRequest{
		Service: "Plumbing", Provider: "Bob", BookingDate: "2024-03-01",
		BookingTime: "10:00:30", Address: "1 Main St",
	}
	require.True(t, errors.As(r.Validate(), &v))
	assert.Equal(t, []FieldError{{Field: "booking_time", Message: "Valid booking time is required (HH:MM)"}}, v.Errors)
}

func TestUpdateStatusRequestParse(t *testing.T) {
	s, err := (&UpdateStatusRequest{Status: "Accepted"}).Parse()
	require.NoError(t, err)
	assert.Equal(t, BookingAccepted, s)

	_, err = (&UpdateStatusRequest{Status: "accepted"}).Parse()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManageableBy(t *testing.T) {
	pid := int64(5)
	assigned := &Booking{CustomerID: 1, Provider: "Bob", ProviderID: &pid}
	legacy := &Booking{CustomerID: 1, Provider: "Bob"}

	alice := &Actor{ID: 1, Name: "Alice", Role: RoleCustomer}
	bob := &Actor{ID: 5, Name: "Bob", Role: RoleProvider}
	otherBob := &Actor{ID: 6, Name: "Bob", Role: RoleProvider}
	customerBob := &Actor{ID: 7, Name: "Bob", Role: RoleCustomer}

	assert.True(t, assigned.ManageableBy(alice))
	assert.True(t, assigned.ManageableBy(bob))
	assert.False(t, assigned.ManageableBy(otherBob))

	assert.True(t, legacy.ManageableBy(otherBob))
	assert.False(t, legacy.ManageableBy(customerBob))

	assert.True(t, assigned.OwnedBy(alice))
	assert.False(t, assigned.OwnedBy(bob))
}
