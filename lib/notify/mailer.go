// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/updraft-systems/updraft/lib/clock"
)

// EmailConfig describes the SMTP account used for operator
// notifications. STARTTLS is mandatory (the usual submission setup on
// port 587).
type EmailConfig struct {
	From     string
	To       string
	Host     string
	Port     int
	Username string
	Password string
}

// NewMailer returns a Notifier that delivers messages as plain-text
// email over SMTP, retrying per the package retry policy.
func NewMailer(config EmailConfig, clk clock.Clock, logger *slog.Logger) (Notifier, error) {
	client, err := mail.NewClient(config.Host,
		mail.WithPort(config.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(config.Username),
		mail.WithPassword(config.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("creating SMTP client for %s: %w", config.Host, err)
	}

	send := func(ctx context.Context, subject, body string) error {
		message := mail.NewMsg()
		if err := message.From(config.From); err != nil {
			return fmt.Errorf("setting sender %s: %w", config.From, err)
		}
		if err := message.To(config.To); err != nil {
			return fmt.Errorf("setting recipient %s: %w", config.To, err)
		}
		message.Subject(subject)
		message.SetBodyString(mail.TypeTextPlain, body)
		return client.DialAndSendWithContext(ctx, message)
	}

	return &retrier{send: send, clock: clk, logger: logger}, nil
}
