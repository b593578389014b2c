package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("service-sphere"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Subject string
	Data    interface{}
}

func (r *Recorder) Publish(_ context.Context, subject string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Subject: subject, Data: data})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Subject)
	}
	return out
}

const (
	UserRegistered = "user.registered"

	BookingCreated  = "booking.created"
	BookingUpdated  = "booking.updated"
	BookingCanceled = "booking.canceled"
)

type UserRegisteredEvent struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingCreatedEvent struct {
	BookingID   int64     `json:"booking_id"`
	CustomerID  int64     `json:"customer_id"`
	Service     string    `json:"service"`
	Provider    string    `json:"provider"`
	ProviderID  *int64    `json:"provider_id,omitempty"`
	BookingDate string    `json:"booking_date"`
	BookingTime string    `json:"booking_time"`
	CreatedAt   time.Time `json:"created_at"`
}

type BookingUpdatedEvent struct {
	BookingID int64     `json:"booking_id"`
	ActorID   int64     `json:"actor_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BookingCanceledEvent struct {
	BookingID  int64     `json:"booking_id"`
	CustomerID int64     `json:"customer_id"`
	CanceledAt time.Time `json:"canceled_at"`
}
