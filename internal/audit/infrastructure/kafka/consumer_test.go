package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/tenant-commerce/internal/audit/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/idempotency"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeRecorder struct {
	mu      sync.Mutex
	fails   int
	err     error
	calls   int
	tenants []string
	records []domain.Record
}

func (f *fakeRecorder) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tenants...)
}

func (f *fakeRecorder) Record(_ context.Context, tenantID string, rec domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return f.err
	}
	f.tenants = append(f.tenants, tenantID)
	f.records = append(f.records, rec)
	return nil
}

func setup(t *testing.T, rec *fakeRecorder) (*Consumer, *fakeReader, *idempotency.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	idem := idempotency.NewStore(rdb, time.Hour)
	reader := &fakeReader{}
	c := NewConsumer(logging.Discard(), reader, rec, idem).WithRetry(3, time.Millisecond)
	return c, reader, idem
}

func auditMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	rec, err := domain.NewRecord("a-1", "u-1", "order.created", "orders", "o-1", map[string]string{"code": "ORD-1"}, time.Now())
	require.NoError(t, err)
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafka.Message{
		Topic:     "commerce.events",
		Partition: 0,
		Offset:    offset,
		Value:     payload,
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(domain.EventRecorded)},
			{Key: outbox.HeaderTenantID, Value: []byte("acme")},
		},
	}
}

func TestHandleRecordsOnce(t *testing.T) {
	rec := &fakeRecorder{}
	c, reader, _ := setup(t, rec)
	ctx := context.Background()

	msg := auditMessage(t, 7)
	c.Handle(ctx, msg)
	c.Handle(ctx, msg)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []string{"acme"}, rec.tenants)
	assert.Equal(t, "order.created", rec.records[0].Action)
	assert.JSONEq(t, `{"code":"ORD-1"}`, string(rec.records[0].Metadata))
	assert.Equal(t, []int64{7, 7}, reader.committed)
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	rec := &fakeRecorder{fails: 2, err: apperr.Infrastructure("audit.Record", errors.New("connection reset"))}
	c, reader, _ := setup(t, rec)

	c.Handle(context.Background(), auditMessage(t, 1))

	assert.Equal(t, 3, rec.calls)
	assert.Len(t, rec.records, 1)
	assert.Equal(t, []int64{1}, reader.committed)
}

func TestHandleReleasesClaimAfterFinalFailure(t *testing.T) {
	rec := &fakeRecorder{fails: 100, err: errors.New("database down")}
	c, reader, idem := setup(t, rec)
	ctx := context.Background()
	msg := auditMessage(t, 3)

	assert.False(t, c.Handle(ctx, msg))
	assert.Equal(t, 3, rec.calls)
	assert.Empty(t, reader.committed)

	seen, err := idem.Seen(ctx, idem.Key(msg.Topic, msg.Partition, msg.Offset))
	require.NoError(t, err)
	assert.False(t, seen, "claim must be released for redelivery")
}

func TestHandleDoesNotRetryRejectedRecords(t *testing.T) {
	rec := &fakeRecorder{fails: 100, err: apperr.Validation("audit action is required")}
	c, reader, _ := setup(t, rec)

	c.Handle(context.Background(), auditMessage(t, 4))
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []int64{4}, reader.committed)
}

func TestHandleSkipsOtherEvents(t *testing.T) {
	rec := &fakeRecorder{}
	c, reader, _ := setup(t, rec)

	msg := auditMessage(t, 9)
	msg.Headers = []kafka.Header{{Key: outbox.HeaderEventType, Value: []byte("OrderShipped")}}
	c.Handle(context.Background(), msg)

	bad := auditMessage(t, 10)
	bad.Value = []byte("{")
	c.Handle(context.Background(), bad)

	assert.Zero(t, rec.calls)
	assert.Equal(t, []int64{9, 10}, reader.committed)
}

func TestRunStopsWithContext(t *testing.T) {
	c, _, _ := setup(t, &fakeRecorder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}

func TestRunDoesNotSkipPastFailedRecord(t *testing.T) {
	rec := &fakeRecorder{fails: 4, err: apperr.Infrastructure("audit.Record", errors.New("database down"))}
	c, reader, _ := setup(t, rec)

	first := auditMessage(t, 3)
	second := auditMessage(t, 4)
	second.Headers[1].Value = []byte("globex")
	reader.queue = []kafka.Message{first, second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []string{"acme", "globex"}, rec.recorded())
	assert.Equal(t, []int64{3, 4}, reader.commits())
}
