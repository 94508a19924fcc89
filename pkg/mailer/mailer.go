package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender defines the interface for outbound email delivery.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// Config holds SMTP connection configuration.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// smtpSender is a gomail-backed implementation of Sender.
type smtpSender struct {
	dialer *gomail.Dialer
	cfg    Config
}

// NewSender creates an SMTP mail sender.
func NewSender(cfg Config) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
	}
}

// Send delivers a single HTML email.
func (s *smtpSender) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
