package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const SubjectPrefix = "exchange."

type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher forwards committed exchange events to NATS. With a stream name
// set it publishes through JetStream and waits for the ack.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	source string
}

func Connect(url, name, stream string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Error("NATS disconnected", slog.String("type", "sys"), slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("type", "sys"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := &Publisher{nc: nc, source: name}
	if stream != "" {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		if err := ensureStream(js, stream); err != nil {
			nc.Close()
			return nil, err
		}
		p.js = js
	}

	slog.Info("Connected to NATS",
		slog.String("type", "sys"),
		slog.String("url", url),
		slog.Bool("jetstream", p.js != nil))
	return p, nil
}

func ensureStream(js nats.JetStreamContext, name string) error {
	if _, err := js.StreamInfo(name); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{SubjectPrefix + ">"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

func Subject(t exchange.EventType) string {
	return SubjectPrefix + string(t)
}

func Encode(source string, event exchange.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		EventID:   uuid.NewString(),
		EventType: string(event.Type),
		Source:    source,
		Timestamp: event.OccurredAt,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}

// Handle is a notify.Handler.
func (p *Publisher) Handle(ctx context.Context, event exchange.Event) error {
	data, err := Encode(p.source, event)
	if err != nil {
		return err
	}

	subject := Subject(event.Type)
	if p.js != nil {
		if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("failed to publish %s: %w", subject, err)
		}
		return nil
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
