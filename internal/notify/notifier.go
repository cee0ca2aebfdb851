// Package notify pushes operator alerts for liquidation events over one or
// more channels (Telegram, Discord). Alerting is best-effort and filtered by
// event so operators can subscribe to settlements only, or to everything.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names emitted by the coordinator.
const (
	EventSellSettled = "sell_settled"
	EventRapidDump   = "rapid_dump"
	EventSyncFailed  = "sync_failed"
	EventError       = "error"
)

// Sender delivers one rendered alert over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every configured sender, filtering by event
// name. An empty subscription list subscribes to every event.
type Notifier struct {
	senders    []Sender
	subscribed map[string]struct{}
	logger     *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// named in subscribe pass the filter; an empty list passes everything.
func NewNotifier(senders []Sender, subscribe []string, logger *slog.Logger) *Notifier {
	subscribed := make(map[string]struct{}, len(subscribe))
	for _, ev := range subscribe {
		if ev = strings.TrimSpace(ev); ev != "" {
			subscribed[ev] = struct{}{}
		}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subscribed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert to every sender if the event is subscribed.
// Failures are joined and returned but every sender is always attempted.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.subscribed) > 0 {
		if _, ok := n.subscribed[event]; !ok {
			n.logger.DebugContext(ctx, "alert filtered", slog.String("event", event))
			return nil
		}
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
