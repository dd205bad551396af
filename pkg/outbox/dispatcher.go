package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event_type"
	HeaderTenantID  = "tenant_id"
	HeaderTrace     = "traceparent"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if err := d.producer.WriteMessages(ctx, d.message(event)); err != nil {
		d.log.Error("outbox dispatch failed", "tenant_id", event.TenantID, "event_id", event.ID, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "tenant_id", event.TenantID, "event_id", event.ID, "type", event.Type)
	return nil
}

func (d *Dispatcher) message(event Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(event.Headers)+3)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers,
		kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)},
		kafka.Header{Key: HeaderTenantID, Value: []byte(event.TenantID)},
	)
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: HeaderTrace, Value: []byte(event.Traceparent)})
	}

	// Keyed by tenant and aggregate so one order's events stay ordered on a partition.
	return kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.TenantID + "/" + event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
}
