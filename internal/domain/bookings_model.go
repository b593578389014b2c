package domain

import (
	"time"

	"github.com/diagnosis/service-sphere/internal/utils"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingAccepted  BookingStatus = "Accepted"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingAccepted, BookingCompleted, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingCancelled},
	BookingAccepted: {BookingCompleted, BookingCancelled},
}

// CanTransition reports whether a booking in status from may move to to.
// Re-applying the current status is allowed and changes nothing.
func CanTransition(from, to BookingStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedSources lists every status from which to is reachable, including
// to itself.
func AllowedSources(to BookingStatus) []BookingStatus {
	out := []BookingStatus{to}
	for from, nexts := range transitions {
		for _, n := range nexts {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}

type Booking struct {
	ID           int64         `json:"id"`
	CustomerID   int64         `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	Service      string        `json:"service"`
	Provider     string        `json:"provider"`
	ProviderID   *int64        `json:"provider_id,omitempty"`
	BookingDate  string        `json:"booking_date"`
	BookingTime  string        `json:"booking_time"`
	Address      string        `json:"address"`
	Notes        string        `json:"notes"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ManageableBy reports whether a may change the status of b: the owning
// customer or the provider the booking is assigned to. Rows without a
// provider_id fall back to the provider name.
func (b *Booking) ManageableBy(a *Actor) bool {
	if a.ID == b.CustomerID {
		return true
	}
	if a.Role != RoleProvider {
		return false
	}
	if b.ProviderID != nil {
		return *b.ProviderID == a.ID
	}
	return b.Provider == a.Name
}

func (b *Booking) OwnedBy(a *Actor) bool {
	return a.ID == b.CustomerID
}

type CreateBookingRequest struct {
	CustomerName string `json:"customer_name"`
	Service      string `json:"service"`
	Provider     string `json:"provider"`
	ProviderID   *int64 `json:"provider_id,omitempty"`
	BookingDate  string `json:"booking_date"`
	BookingTime  string `json:"booking_time"`
	Address      string `json:"address"`
	Notes        string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *CreateBookingRequest) Normalize() {
	r.CustomerName = utils.NormalizeString(r.CustomerName)
	r.Service = utils.NormalizeString(r.Service)
	r.Provider = utils.NormalizeString(r.Provider)
	r.BookingDate = utils.NormalizeString(r.BookingDate)
	r.BookingTime = utils.NormalizeString(r.BookingTime)
	r.Address = utils.NormalizeString(r.Address)
	r.Notes = utils.NormalizeString(r.Notes)
}

func (r *CreateBookingRequest) Validate() error {
	v := &ValidationError{}
	if r.Service == "" {
		v.Add("service", "Service is required")
	}
	if r.Provider == "" && r.ProviderID == nil {
		v.Add("provider", "Provider is required")
	}
	if r.ProviderID != nil && *r.ProviderID <= 0 {
		v.Add("provider_id", "Invalid provider")
	}
	if _, ok := utils.ParseDate(r.BookingDate); !ok {
		v.Add("booking_date", "Valid booking date is required (YYYY-MM-DD)")
	}
	if _, ok := utils.ParseClock(r.BookingTime); !ok {
		v.Add("booking_time", "Valid booking time is required (HH:MM)")
	}
	if r.Address == "" {
		v.Add("address", "Address is required")
	}
	return v.Err()
}

// Parse validates the body of a status change.
func (r *UpdateStatusRequest) Parse() (BookingStatus, error) {
	status, ok := ParseBookingStatus(utils.NormalizeString(r.Status))
	if !ok {
		v := &ValidationError{}
		v.Add("status", "Invalid status")
		return "", v
	}
	return status, nil
}
