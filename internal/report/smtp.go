package report

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPSink sends mail through a plain-auth SMTP relay.
type SMTPSink struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

var _ NotificationSink = (*SMTPSink)(nil)

func NewSMTPSink(host, port, user, password, from string) *SMTPSink {
	return &SMTPSink{host: host, port: port, user: user, password: password, from: from}
}

func (s *SMTPSink) Send(_ context.Context, recipient, subject, body string) error {
	if s.host == "" {
		return fmt.Errorf("smtp sink not configured")
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, recipient, subject, body,
	)

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{recipient}, []byte(message)); err != nil {
		return fmt.Errorf("send via smtp: %w", err)
	}
	return nil
}
