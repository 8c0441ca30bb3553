// Package events carries domain events out of the aggregate after a
// successful save: an in-process dispatcher fans them out to registered
// handlers, and the integration publisher forwards their translated envelopes
// onto the Redis stream.
package events

import (
	"context"
	"log/slog"

	"github.com/kestrelbank/ledger-service/internal/domain"
)

// Handler consumes a single drained domain event.
type Handler func(ctx context.Context, event domain.Event) error

// Dispatcher routes drained domain events to zero or more handlers. Commands
// invoke it strictly after persistence succeeded, so a handler failure must
// never bubble back into the command result; it is logged and dropped from
// the in-memory path. Durability past this point is the event store's job.
type Dispatcher struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Register adds a handler. Not safe to call concurrently with Dispatch;
// registration happens once, at wiring time.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch delivers each event to every handler, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		for _, handle := range d.handlers {
			if err := handle(ctx, event); err != nil {
				d.logger.Warn("event handler failed",
					"subject", event.Subject,
					"eventId", event.ID,
					"accountId", event.AccountID,
					"error", err,
				)
			}
		}
	}
}
