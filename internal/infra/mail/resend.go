package mail

import (
	"context"
	"fmt"

	"github.com/resendlabs/resend-go"
)

// ResendSender delivers through the Resend API. The returned id is what delivery
// callbacks reference as data.email_id.
type ResendSender struct {
	From From
	send func(*resend.SendEmailRequest) (string, error)
}

func NewResendSender(apiKey string, from From) *ResendSender {
	client := resend.NewClient(apiKey)
	return &ResendSender{
		From: from,
		send: func(req *resend.SendEmailRequest) (string, error) {
			resp, err := client.Emails.Send(req)
			if err != nil {
				return "", err
			}
			return resp.Id, nil
		},
	}
}

func (s *ResendSender) SendDelivery(ctx context.Context, msg DeliveryMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := RenderDelivery(msg)
	if err != nil {
		return "", err
	}

	id, err := s.send(&resend.SendEmailRequest{
		From:    s.From.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    body.HTML,
		Text:    body.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return id, nil
}
