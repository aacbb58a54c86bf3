// Package delivery contains the message transport implementations.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPDeliverer sends rendered messages through a plain SMTP relay.
type SMTPDeliverer struct {
	Addr string // host:port of the relay
	From string
}

func NewSMTPDeliverer(addr, from string) *SMTPDeliverer {
	return &SMTPDeliverer{Addr: addr, From: from}
}

func (d *SMTPDeliverer) Send(ctx context.Context, subject, body, recipientAddress string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	msg.WriteString("From: " + d.From + "\r\n")
	msg.WriteString("To: " + recipientAddress + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(d.Addr, nil, d.From, []string{recipientAddress}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipientAddress, err)
	}
	return nil
}

// LogDeliverer writes messages to the log instead of sending them. Used when
// no SMTP relay is configured, and in local development.
type LogDeliverer struct{}

func NewLogDeliverer() *LogDeliverer { return &LogDeliverer{} }

func (d *LogDeliverer) Send(ctx context.Context, subject, body, recipientAddress string) error {
	slog.InfoContext(ctx, "Delivering message to log only, no SMTP relay configured",
		"to", recipientAddress, "subject", subject, "body_bytes", len(body))
	return nil
}
