package utils

import (
	"regexp"
	"strings"
	"time"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeString trims whitespace and normalizes string input
func NormalizeString(s string) string {
	return strings.TrimSpace(s)
}

// IsValidEmail performs basic email validation
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ParseDate accepts a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, s)
	return t, err == nil
}

// ParseClock accepts a wall-clock time in HH:MM form. Bookings are
// minute-granular, so seconds are rejected rather than dropped.
func ParseClock(s string) (time.Time, bool) {
	t, err := time.Parse("15:04", s)
	return t, err == nil
}
