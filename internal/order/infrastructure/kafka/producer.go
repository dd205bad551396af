package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer publishes outbox events. Messages carry their own topic and are
// partitioned by key, so events of one order keep their relative order.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}
