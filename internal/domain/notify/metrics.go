package notify

import (
	"context"
	"fmt"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts committed events on the global meter provider.
type Metrics struct {
	events metric.Int64Counter
	volume metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/cardforge/cardforge/exchange")

	events, err := meter.Int64Counter("exchange_events_total",
		metric.WithDescription("Committed exchange events by type"))
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}
	volume, err := meter.Int64Counter("exchange_sales_volume",
		metric.WithDescription("Currency paid in completed listing sales"))
	if err != nil {
		return nil, fmt.Errorf("failed to create volume counter: %w", err)
	}

	return &Metrics{events: events, volume: volume}, nil
}

func (m *Metrics) Handle(ctx context.Context, event exchange.Event) error {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(event.Type))))
	if event.Type == exchange.EventListingSold && event.Amount > 0 {
		m.volume.Add(ctx, int64(event.Amount), metric.WithAttributes(attribute.String("currency", string(event.Currency))))
	}
	return nil
}
