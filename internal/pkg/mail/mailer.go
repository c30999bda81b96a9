package mail

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a single message to one recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

// SendgridMailer delivers mail through the SendGrid API.
type SendgridMailer struct {
	apiKey     string
	sender     string
	senderName string
}

// NewSendgridMailer builds the production mailer.
func NewSendgridMailer(apiKey, sender string) *SendgridMailer {
	return &SendgridMailer{
		apiKey:     apiKey,
		sender:     sender,
		senderName: "FleetLog",
	}
}

func (m *SendgridMailer) Send(to, subject, body string) error {
	if m.apiKey == "" {
		return errors.New("SENDGRID_API_KEY is not configured")
	}
	if m.sender == "" {
		return errors.New("MAIL_SENDER is not configured")
	}

	from := sgmail.NewEmail(m.senderName, m.sender)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, body, body)
	client := sendgrid.NewSendClient(m.apiKey)

	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", response.StatusCode, response.Body)
	}
	log.Infof("[Mail] Sent %q to %s", subject, to)
	return nil
}
