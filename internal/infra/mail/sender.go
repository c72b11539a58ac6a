package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// EmailSender delivers over SMTP.
type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     From

	dial func() (gomail.SendCloser, error)
}

func NewEmailSender(host string, port int, user, password string, from From) *EmailSender {
	s := &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
	s.dial = func() (gomail.SendCloser, error) {
		return gomail.NewDialer(s.Host, s.Port, s.User, s.Password).Dial()
	}
	return s
}

// SendDelivery returns the generated Message-ID as provider id.
func (s *EmailSender) SendDelivery(ctx context.Context, msg DeliveryMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := RenderDelivery(msg)
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(s.From.Address))

	m := gomail.NewMessage()
	m.SetHeader("From", s.From.String())
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", body.Text)
	m.AddAlternative("text/html", body.HTML)

	sc, err := s.dial()
	if err != nil {
		return "", fmt.Errorf("failed to dial SMTP: %w", err)
	}
	defer sc.Close()

	if err := gomail.Send(sc, m); err != nil {
		return "", fmt.Errorf("failed to send SMTP email: %w", err)
	}
	return messageID, nil
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}
