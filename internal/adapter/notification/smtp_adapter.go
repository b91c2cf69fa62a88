package notification

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPNotifier delivers stock alerts by plain SMTP without auth, which
// is what a mailhog-style relay on the local network expects.
type SMTPNotifier struct {
	addr string
	from string
}

func NewSMTPNotifier(host string, port int, from string) *SMTPNotifier {
	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, destination, message string) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Allocation service notification\r\n\r\n%s\r\n",
		n.from, destination, message)

	if err := smtp.SendMail(n.addr, nil, n.from, []string{destination}, []byte(body)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", destination, err)
	}
	return nil
}
