package mailer

import (
	"context"
	"fmt"
	"html"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/pkg/config"
)

// Sender delivers one message and returns the provider message id when
// there is one. Implementations must give up once ctx is done.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
}

type Service interface {
	SendWelcome(ctx context.Context, toEmail, toName, role string) error
	SendBookingConfirmation(ctx context.Context, toEmail, toName string, b *domain.Booking) error
}

// New picks the sender named by cfg.Driver.
func New(cfg config.EmailConfig) (Service, error) {
	switch cfg.Driver {
	case "", "dev":
		return NewNotifier(NewDevMailer()), nil
	case "smtp":
		return NewNotifier(NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)), nil
	case "mailersend":
		m, err := NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
		if err != nil {
			return nil, err
		}
		return NewNotifier(m), nil
	default:
		return nil, fmt.Errorf("unknown mailer %q", cfg.Driver)
	}
}

type Notifier struct {
	sender Sender
}

func NewNotifier(s Sender) *Notifier {
	return &Notifier{sender: s}
}

func (n *Notifier) SendWelcome(ctx context.Context, toEmail, toName, role string) error {
	subject := "Welcome to Service Sphere"
	text := fmt.Sprintf("Hi %s,\n\nYour %s account is ready. You can now sign in with %s.", toName, role, toEmail)
	body := fmt.Sprintf(`<p>Hi %s,</p><p>Your %s account is ready. You can now sign in with <b>%s</b>.</p>`,
		html.EscapeString(toName), html.EscapeString(role), html.EscapeString(toEmail))
	_, err := n.sender.Send(ctx, toEmail, toName, subject, text, body)
	return err
}

func (n *Notifier) SendBookingConfirmation(ctx context.Context, toEmail, toName string, b *domain.Booking) error {
	subject := fmt.Sprintf("Booking #%d received", b.ID)
	text := fmt.Sprintf("Hi %s,\n\nWe received your %s booking with %s on %s at %s.\nAddress: %s\nStatus: %s",
		toName, b.Service, b.Provider, b.BookingDate, b.BookingTime, b.Address, b.Status)
	body := fmt.Sprintf(`<p>Hi %s,</p><p>We received your <b>%s</b> booking with %s on %s at %s.</p><p>Address: %s<br>Status: %s</p>`,
		html.EscapeString(toName), html.EscapeString(b.Service), html.EscapeString(b.Provider),
		b.BookingDate, b.BookingTime, html.EscapeString(b.Address), b.Status)
	_, err := n.sender.Send(ctx, toEmail, toName, subject, text, body)
	return err
}
