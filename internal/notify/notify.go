// Package notify delivers operator and owner notifications. Delivery is
// fire-and-forget: failures are logged by callers and never feed back into
// scheduler control flow.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher posts a message to a channel.
type Dispatcher interface {
	Notify(ctx context.Context, channel, message string) error
}

// LogDispatcher writes notifications to the structured log. Used when no
// Slack webhook is configured (local development, CI).
type LogDispatcher struct{}

func (LogDispatcher) Notify(_ context.Context, channel, message string) error {
	slog.Info("notification", "channel", channel, "message", message)
	return nil
}

var _ Dispatcher = LogDispatcher{}
