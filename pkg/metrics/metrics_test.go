package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	ObserveHTTP("/bookings", "GET", 200, 5*time.Millisecond)
	ObserveHTTP("", "GET", 404, time.Millisecond)
	IncAuth("login", "success")
	IncBooking("created")
	IncBooking("created")

	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("/bookings", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(authAttempts.WithLabelValues("login", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(bookingEvents.WithLabelValues("created")))
}
