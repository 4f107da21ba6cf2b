// Package mailer sends transcript mail over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
)

// ErrNotConfigured is returned by a mailer without SMTP credentials.
var ErrNotConfigured = errors.New("mail transport not configured")

// Attachment is a single file attached to a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message is one outbound mail.
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// WithoutAttachment returns a copy of m with the attachment stripped.
func (m Message) WithoutAttachment() Message {
	m.Attachment = nil
	return m
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through an authenticated STARTTLS relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  cfg.SendTimeout,
	}
}

// Build renders msg into a go-mail message.
func Build(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	if msg.Attachment != nil {
		if err := m.AttachReader(msg.Attachment.Name, bytes.NewReader(msg.Attachment.Data)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", msg.Attachment.Name, err)
		}
	}
	return m, nil
}

// Send delivers msg. Every call opens its own SMTP session.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if s.host == "" || s.username == "" {
		return ErrNotConfigured
	}
	m, err := Build(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthLogin),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if s.timeout > 0 {
		opts = append(opts, gomail.WithTimeout(s.timeout))
	}
	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}
