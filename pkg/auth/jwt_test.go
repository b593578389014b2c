package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestIssueAndParse(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager("secret", 24*time.Hour, WithClock(clock.Now))

	tok, err := m.Issue(42, "Alice", "alice@x.io", "customer")
	require.NoError(t, err)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "alice@x.io", claims.Email)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, clock.t.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestParseExpiry(t *testing.T) {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issued}
	m := NewManager("secret", 24*time.Hour, WithClock(clock.Now))

	tok, err := m.Issue(1, "A", "a@x.io", "customer")
	require.NoError(t, err)

	clock.t = issued.Add(23*time.Hour + 59*time.Minute)
	_, err = m.Parse(tok)
	require.NoError(t, err)

	clock.t = issued.Add(24*time.Hour + time.Minute)
	_, err = m.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsTampering(t *testing.T) {
	m := NewManager("secret", time.Hour)
	tok, err := m.Issue(1, "A", "a@x.io", "customer")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	forged, err := NewManager("other-secret", time.Hour).Issue(1, "A", "a@x.io", "provider")
	require.NoError(t, err)
	fparts := strings.Split(forged, ".")
	// payload from one token, signature from another
	_, err = m.Parse(parts[0] + "." + fparts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	m := NewManager("secret", time.Hour)

	claims := Claims{
		ID:   1,
		Role: "provider",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Audience:  []string{Audience},
		},
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.Parse(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	m := NewManager("secret", time.Hour)
	claims := Claims{
		ID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Audience:  []string{"another-api"},
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
