package mailer

import (
	"context"
	"time"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Async hands mail to background goroutines so a slow mail server never
// holds up the request that triggered it. Each send gets its own deadline
// and survives cancellation of the request context. When maxInFlight
// sends are already running, further mail is dropped and logged.
type Async struct {
	next    Service
	timeout time.Duration
	g       errgroup.Group
}

func NewAsync(next Service, timeout time.Duration, maxInFlight int) *Async {
	a := &Async{next: next, timeout: timeout}
	a.g.SetLimit(maxInFlight)
	return a
}

func (a *Async) SendWelcome(ctx context.Context, toEmail, toName, role string) error {
	a.dispatch(ctx, "welcome", func(ctx context.Context) error {
		return a.next.SendWelcome(ctx, toEmail, toName, role)
	})
	return nil
}

func (a *Async) SendBookingConfirmation(ctx context.Context, toEmail, toName string, b *domain.Booking) error {
	cp := *b
	a.dispatch(ctx, "booking_confirmation", func(ctx context.Context) error {
		return a.next.SendBookingConfirmation(ctx, toEmail, toName, &cp)
	})
	return nil
}

func (a *Async) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	started := a.g.TryGo(func() error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to send email", "kind", kind, "error", err)
		}
		return nil
	})
	if !started {
		logger.WarnContext(ctx, "Mail queue full, dropping email", "kind", kind)
	}
}

// Wait blocks until every in-flight send has finished.
func (a *Async) Wait() {
	_ = a.g.Wait()
}
