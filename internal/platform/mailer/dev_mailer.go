package mailer

import (
	"context"

	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/google/uuid"
)

// DevMailer logs messages instead of delivering them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	id := uuid.NewString()
	logger.InfoContext(ctx, "[DEV MAIL] message",
		"message_id", id,
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return id, nil
}
