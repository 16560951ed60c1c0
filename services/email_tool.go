package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github/itish2003/tariff/models"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// DefaultEmailSender is the Resend sandbox address.
const DefaultEmailSender = "onboarding@resend.dev"

// Mailer delivers one HTML message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, subject, html string) (string, error)
}

type resendMailer struct {
	client *resend.Client
}

// NewResendMailer returns a Mailer backed by the Resend API.
func NewResendMailer(apiKey string) Mailer {
	return &resendMailer{client: resend.NewClient(apiKey)}
}

func (m *resendMailer) Send(ctx context.Context, from string, to []string, subject, html string) (string, error) {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}

// EmailTool sends a conversation summary to a recipient.
type EmailTool struct {
	mailer Mailer
	from   string
}

// NewEmailTool returns a tool using mailer. A nil mailer makes every send
// fail with ErrEmailDeliveryFailed.
func NewEmailTool(mailer Mailer, from string) *EmailTool {
	if from == "" {
		from = DefaultEmailSender
	}
	return &EmailTool{mailer: mailer, from: from}
}

// Send delivers req once; failures are not retried.
func (e *EmailTool) Send(ctx context.Context, req models.EmailRequest) (string, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return "", fmt.Errorf("%w: recipient is empty", ErrEmailDeliveryFailed)
	}
	if e.mailer == nil {
		return "", fmt.Errorf("%w: no email provider configured", ErrEmailDeliveryFailed)
	}

	id, err := e.mailer.Send(ctx, e.from, []string{to}, req.Subject, req.BodyHTML)
	if err != nil {
		return "", errors.Join(ErrEmailDeliveryFailed, err)
	}
	zap.L().Info("summary email sent", zap.String("to", to), zap.String("id", id))
	return fmt.Sprintf("Email with conversation summary sent successfully to %s with subject '%s'", to, req.Subject), nil
}
