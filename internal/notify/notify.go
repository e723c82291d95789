// Package notify delivers milestone notifications: match start and end,
// goals, penalty goals and red cards.
//
// Delivery is best effort. Callers log failures and carry on, so every
// Notifier here returns errors rather than retrying.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Notifier sends one notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes notifications to the structured log. It is the
// device default when no broker is configured.
type LogNotifier struct{}

// Notify logs the notification. Never fails.
func (LogNotifier) Notify(_ context.Context, title, body string) error {
	slog.Info("notification", "title", title, "body", body)
	return nil
}

// Multi fans a notification out to several notifiers. Every notifier is
// tried; the failures are joined.
type Multi []Notifier

// Notify sends to each notifier in order.
func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
