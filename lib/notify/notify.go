// Copyright 2026 The Updraft Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify reports update lifecycle events to an operator.
//
// Notification is fire-and-forget from the caller's perspective: the
// [Notifier] interface returns nothing, and implementations retry a
// bounded number of times with a fixed delay before logging the loss
// and giving up. A notification failure never blocks or fails an
// update tick.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/updraft-systems/updraft/lib/clock"
)

// Notifier sends a human-readable status message. Implementations
// never return an error to the caller; delivery problems are handled
// internally.
type Notifier interface {
	Notify(ctx context.Context, subject, body string)
}

// maxAttempts is how many times a notification delivery is tried
// before the message is dropped.
const maxAttempts = 3

// retryDelay is the fixed pause between delivery attempts.
const retryDelay = 5 * time.Second

// Discard returns a Notifier that logs each notification at debug
// level and sends nothing. Used when no notification channel is
// configured.
func Discard(logger *slog.Logger) Notifier {
	return discard{logger: logger}
}

type discard struct {
	logger *slog.Logger
}

func (d discard) Notify(ctx context.Context, subject, body string) {
	d.logger.Debug("notification discarded (no notifier configured)", "subject", subject)
}

// sendFunc performs one delivery attempt.
type sendFunc func(ctx context.Context, subject, body string) error

// retrier wraps a sendFunc with the bounded retry policy shared by all
// real notifiers.
type retrier struct {
	send   sendFunc
	clock  clock.Clock
	logger *slog.Logger
}

func (r *retrier) Notify(ctx context.Context, subject, body string) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.send(ctx, subject, body)
		if err == nil {
			r.logger.Info("notification sent", "subject", subject)
			return
		}
		r.logger.Error("notification attempt failed",
			"subject", subject,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			r.logger.Error("notification abandoned", "subject", subject, "error", ctx.Err())
			return
		case <-r.clock.After(retryDelay):
		}
	}
	r.logger.Error("all notification attempts failed", "subject", subject)
}
