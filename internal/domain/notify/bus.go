package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cardforge/cardforge/internal/domain/exchange"
)

// Handler consumes one committed event. Errors are logged, never returned to
// the request that produced the event.
type Handler func(ctx context.Context, event exchange.Event) error

// Bus fans committed events out to its subscribers. A subscription without
// event types receives everything.
type Bus struct {
	mu       sync.RWMutex
	handlers map[exchange.EventType][]namedHandler
	catchAll []namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[exchange.EventType][]namedHandler)}
}

func (b *Bus) Subscribe(name string, fn Handler, types ...exchange.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := namedHandler{name: name, fn: fn}
	if len(types) == 0 {
		b.catchAll = append(b.catchAll, h)
	}
	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], h)
	}

	slog.Info("Registered event handler",
		slog.String("type", "sys"),
		slog.String("name", name),
		slog.Int("event_types", len(types)))
}

// Notify implements exchange.Notifier.
func (b *Bus) Notify(ctx context.Context, event exchange.Event) {
	b.mu.RLock()
	handlers := make([]namedHandler, 0, len(b.catchAll)+len(b.handlers[event.Type]))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h namedHandler, event exchange.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panic",
				slog.String("type", "error"),
				slog.String("name", h.name),
				slog.String("event", string(event.Type)),
				slog.Any("panic", r))
		}
	}()

	if err := h.fn(ctx, event); err != nil {
		slog.Error("Event handler failed",
			slog.String("type", "error"),
			slog.String("name", h.name),
			slog.String("event", string(event.Type)),
			slog.Any("error", err))
	}
}
