// Package notify defines the narrow notification collaborator consumed by
// the signing workflow. Actual email/SMS transport lives outside this core;
// implementations here adapt to whatever the host application provides.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher delivers a review invitation to a client.
type Dispatcher interface {
	SendEmail(ctx context.Context, address, subject, body string) error
	SendSMS(ctx context.Context, number, body string) error
}

// LogDispatcher writes notifications to the log instead of sending them.
// Used in development and as the default when no transport is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *LogDispatcher) SendEmail(ctx context.Context, address, subject, body string) error {
	d.log().Info("email notification", "to", address, "subject", subject, "body", body)
	return nil
}

func (d *LogDispatcher) SendSMS(ctx context.Context, number, body string) error {
	d.log().Info("sms notification", "to", number, "body", body)
	return nil
}
