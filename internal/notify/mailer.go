package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vvka-141/pipekit/pkg/pipekit"
	"github.com/wneessen/go-mail"
)

// Mailer delivers a composed message. secret authenticates the sender.
type Mailer interface {
	Send(ctx context.Context, msg Message, secret string) error
}

// SMTPMailer delivers through an SMTP submission server. The connection is
// upgraded with STARTTLS before PLAIN authentication as the sender; a server
// without STARTTLS is refused.
type SMTPMailer struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewSMTPMailer creates a mailer for the configured server.
func NewSMTPMailer(config pipekit.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{Host: config.SMTPHost, Port: config.SMTPPort, Timeout: 30 * time.Second}
}

// Send dials, authenticates, sends and quits.
func (m *SMTPMailer) Send(ctx context.Context, msg Message, secret string) error {
	email, err := buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.Host,
		mail.WithPort(m.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(msg.From),
		mail.WithPassword(secret),
		mail.WithTimeout(m.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client for %s:%d: %w", m.Host, m.Port, err)
	}

	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return fmt.Errorf("send via %s:%d: %w", m.Host, m.Port, err)
	}
	return nil
}

// WriterMailer writes the RFC 5322 rendering of each message to W instead of
// sending it. The secret is ignored.
type WriterMailer struct {
	W io.Writer
}

// Send renders msg as it would go over the wire and writes it to W.
func (m *WriterMailer) Send(ctx context.Context, msg Message, secret string) error {
	email, err := buildMsg(msg)
	if err != nil {
		return err
	}
	if _, err := email.WriteTo(m.W); err != nil {
		return fmt.Errorf("render message: %w", err)
	}
	return nil
}

func buildMsg(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()
	if err := email.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := email.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextPlain, msg.Body)
	return email, nil
}
