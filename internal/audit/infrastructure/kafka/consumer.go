package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/tenant-commerce/internal/audit/application"
	"github.com/dmehra2102/tenant-commerce/internal/audit/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/idempotency"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
	"github.com/dmehra2102/tenant-commerce/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// Consumer delivers AuditRecorded events to an AuditRecorder.
type Consumer struct {
	log      *slog.Logger
	reader   Reader
	recorder application.AuditRecorder
	idem     *idempotency.Store
	tracer   trace.Tracer

	attempts uint64
	interval time.Duration
}

func NewConsumer(log *slog.Logger, reader Reader, recorder application.AuditRecorder, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:      log,
		reader:   reader,
		recorder: recorder,
		idem:     idem,
		tracer:   otel.Tracer("audit-consumer"),
		attempts: 3,
		interval: 200 * time.Millisecond,
	}
}

// WithRetry sets how many times Record is attempted and the first backoff delay.
func (c *Consumer) WithRetry(attempts uint64, interval time.Duration) *Consumer {
	c.attempts = max(attempts, 1)
	c.interval = interval
	return c
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.deliver(ctx, msg); err != nil {
			return err
		}
	}
}

// deliver keeps handling msg until it is committed. Committing a later
// offset would also commit this one, so the reader is not advanced past a
// record that failed.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) error {
	pause := backoff.NewExponentialBackOff()
	pause.InitialInterval = c.interval
	pause.MaxElapsedTime = 0
	for !c.Handle(ctx, msg) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause.NextBackOff()):
		}
	}
	return nil
}

// Handle processes one message and reports whether it was committed.
// Messages that can never succeed are committed; a record that keeps
// failing is left uncommitted and its idempotency claim released so the
// next attempt processes it again.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) bool {
	if tracing.HeaderValue(msg.Headers, outbox.HeaderEventType) != domain.EventRecorded {
		return c.commit(ctx, msg)
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return false
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return c.commit(ctx, msg)
	}

	tenantID := tracing.HeaderValue(msg.Headers, outbox.HeaderTenantID)
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeAuditRecorded", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	var rec domain.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		c.log.ErrorContext(msgCtx, "unmarshal failed", "tenant_id", tenantID, "err", err)
		return c.commit(ctx, msg)
	}

	if err := c.record(msgCtx, tenantID, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if apperr.KindOf(err).Fatal() {
			if ferr := c.idem.Forget(ctx, key); ferr != nil {
				c.log.ErrorContext(msgCtx, "idempotency release failed", "key", key, "err", ferr)
			}
			c.log.ErrorContext(msgCtx, "audit record failed", "tenant_id", tenantID, "audit_id", rec.ID, "target_id", rec.TargetID, "err", err)
			return false
		}
		c.log.WarnContext(msgCtx, "audit record rejected", "tenant_id", tenantID, "audit_id", rec.ID, "err", err)
		return c.commit(ctx, msg)
	}
	c.log.DebugContext(msgCtx, "audit recorded", "tenant_id", tenantID, "audit_id", rec.ID, "action", rec.Action)
	return c.commit(ctx, msg)
}

func (c *Consumer) record(ctx context.Context, tenantID string, rec domain.Record) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.attempts-1), ctx)

	return backoff.Retry(func() error {
		err := c.recorder.Record(ctx, tenantID, rec)
		if err != nil && !apperr.KindOf(err).Fatal() {
			// Bad input stays bad.
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) bool {
	err := c.reader.CommitMessages(ctx, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("commit failed", "offset", msg.Offset, "err", err)
	}
	return err == nil
}
