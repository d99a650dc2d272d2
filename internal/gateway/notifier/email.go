package notifier

import (
	"fmt"

	"tickwatch/internal/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email submits notifications through SendGrid.
type Email struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	recipient string
}

func NewEmail(cfg config.EmailConfig) (*Email, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("email notifier requires api_key")
	}
	if cfg.FromEmail == "" || cfg.Recipient == "" {
		return nil, fmt.Errorf("email notifier requires from_email and recipient")
	}
	return &Email{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		recipient: cfg.Recipient,
	}, nil
}

// SendEmail sends one plain-text email to the configured recipient.
func (e *Email) SendEmail(subject, body string) error {
	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail("", e.recipient)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := e.client.Send(message)
	if err != nil {
		return &Error{Channel: "email", Err: err}
	}
	if resp.StatusCode >= 400 {
		return &Error{Channel: "email", Err: fmt.Errorf("sendgrid status=%d", resp.StatusCode)}
	}
	return nil
}
