package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/platform/mailer"
	"github.com/diagnosis/service-sphere/internal/repo/postgres"
	"github.com/diagnosis/service-sphere/pkg/events"
	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/diagnosis/service-sphere/pkg/metrics"
)

type BookingService interface {
	Create(ctx context.Context, actor *domain.Actor, req *domain.CreateBookingRequest, idempotencyKey string) (*domain.Booking, error)
	ListForCustomer(ctx context.Context, actor *domain.Actor) ([]domain.Booking, error)
	ListForProvider(ctx context.Context, actor *domain.Actor) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, actor *domain.Actor, id int64, req *domain.UpdateStatusRequest) (*domain.Booking, error)
	Cancel(ctx context.Context, actor *domain.Actor, id int64) (*domain.Booking, error)
}

type bookingService struct {
	bookingRepo     postgres.BookingsRepo
	idempotencyRepo postgres.IdempotencyRepo
	userRepo        postgres.UsersRepo
	mailer          mailer.Service
	eventBus        events.Publisher
}

func NewBookingService(
	bookingRepo postgres.BookingsRepo,
	idempotencyRepo postgres.IdempotencyRepo,
	userRepo postgres.UsersRepo,
	mailer mailer.Service,
	eventBus events.Publisher,
) BookingService {
	return &bookingService{
		bookingRepo:     bookingRepo,
		idempotencyRepo: idempotencyRepo,
		userRepo:        userRepo,
		mailer:          mailer,
		eventBus:        eventBus,
	}
}

func (s *bookingService) Create(ctx context.Context, actor *domain.Actor, req *domain.CreateBookingRequest, idempotencyKey string) (*domain.Booking, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CustomerName == "" {
		req.CustomerName = actor.Name
	}

	// cheap replay path; CreateIdempotent settles concurrent first attempts
	if idempotencyKey != "" {
		existingID, err := s.idempotencyRepo.Lookup(ctx, actor.ID, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existingID > 0 {
			existing, err := s.bookingRepo.GetByID(ctx, existingID)
			if err != nil {
				return nil, fmt.Errorf("failed to load booking: %w", err)
			}
			if existing != nil {
				logger.InfoContext(ctx, "Idempotent booking replay", "booking_id", existing.ID)
				return existing, nil
			}
		}
	}

	if err := s.resolveProvider(ctx, req); err != nil {
		return nil, err
	}

	var (
		booking  *domain.Booking
		replayed bool
		err      error
	)
	if idempotencyKey == "" {
		booking, err = s.bookingRepo.Create(ctx, actor.ID, req)
	} else {
		booking, replayed, err = s.bookingRepo.CreateIdempotent(ctx, actor.ID, req, idempotencyKey)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	if replayed {
		logger.InfoContext(ctx, "Idempotent booking replay", "booking_id", booking.ID)
		return booking, nil
	}
	metrics.IncBooking("created")

	event := events.BookingCreatedEvent{
		BookingID:   booking.ID,
		CustomerID:  booking.CustomerID,
		Service:     booking.Service,
		Provider:    booking.Provider,
		ProviderID:  booking.ProviderID,
		BookingDate: booking.BookingDate,
		BookingTime: booking.BookingTime,
		CreatedAt:   booking.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", booking.ID)
	}

	if err := s.mailer.SendBookingConfirmation(ctx, actor.Email, booking.CustomerName, booking); err != nil {
		logger.ErrorContext(ctx, "Failed to send booking confirmation", "error", err, "booking_id", booking.ID)
	}

	return booking, nil
}

// resolveProvider links the booking to a provider identity. An explicit
// provider_id must name a provider; otherwise the display name is linked
// only when exactly one provider carries it.
func (s *bookingService) resolveProvider(ctx context.Context, req *domain.CreateBookingRequest) error {
	if req.ProviderID != nil {
		p, err := s.userRepo.FindByID(ctx, *req.ProviderID)
		if err != nil {
			return fmt.Errorf("failed to find provider: %w", err)
		}
		if p == nil || p.Role != domain.RoleProvider {
			v := &domain.ValidationError{}
			v.Add("provider_id", "Provider not found")
			return v
		}
		if req.Provider == "" {
			req.Provider = p.Name
		}
		return nil
	}

	matches, err := s.userRepo.FindProvidersByName(ctx, req.Provider)
	if err != nil {
		return fmt.Errorf("failed to find provider: %w", err)
	}
	if len(matches) == 1 {
		id := matches[0].ID
		req.ProviderID = &id
	}
	return nil
}

func (s *bookingService) ListForCustomer(ctx context.Context, actor *domain.Actor) ([]domain.Booking, error) {
	bookings, err := s.bookingRepo.ListByCustomer(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) ListForProvider(ctx context.Context, actor *domain.Actor) ([]domain.Booking, error) {
	bookings, err := s.bookingRepo.ListByProvider(ctx, actor.ID, actor.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, actor *domain.Actor, id int64, req *domain.UpdateStatusRequest) (*domain.Booking, error) {
	status, err := req.Parse()
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.UpdateStatus(ctx, id, actor, status)
	if err != nil {
		return nil, wrapLedgerError("failed to update booking", err)
	}
	metrics.IncBooking("updated")

	event := events.BookingUpdatedEvent{
		BookingID: booking.ID,
		ActorID:   actor.ID,
		Status:    string(booking.Status),
		UpdatedAt: booking.UpdatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.BookingUpdated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking updated event", "error", err, "booking_id", booking.ID)
	}

	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, actor *domain.Actor, id int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.Cancel(ctx, id, actor.ID)
	if err != nil {
		return nil, wrapLedgerError("failed to cancel booking", err)
	}
	metrics.IncBooking("canceled")

	event := events.BookingCanceledEvent{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		CanceledAt: booking.UpdatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.BookingCanceled, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking canceled event", "error", err, "booking_id", booking.ID)
	}

	return booking, nil
}

// wrapLedgerError passes domain errors through untouched and wraps storage
// failures with context.
func wrapLedgerError(msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrInvalidTransition):
		return err
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
