package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
)

// maxDeliveryAttempts bounds how often a failed row is picked up again.
const maxDeliveryAttempts = 5

// Stage writes msg to the outbox inside tx.
func Stage(ctx context.Context, tx pgx.Tx, msg outbox.Message) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')`,
		msg.AggregateType, msg.AggregateID, msg.Type, msg.Payload, headers, msg.Traceparent)
	return err
}

// OutboxStore is one tenant's outbox table.
type OutboxStore struct {
	log *slog.Logger
	db  tenantapp.DB
}

var _ outbox.Store = (*OutboxStore)(nil)

func NewOutboxStore(log *slog.Logger, db tenantapp.DB) *OutboxStore {
	return &OutboxStore{log: log, db: db}
}

// Sources lists one outbox per tenant database known to discover.
func Sources(log *slog.Logger, discover func(ctx context.Context) ([]*tenantapp.Handle, error)) outbox.SourceFunc {
	return func(ctx context.Context) ([]outbox.Source, error) {
		handles, err := discover(ctx)
		if err != nil {
			return nil, err
		}
		sources := make([]outbox.Source, 0, len(handles))
		for _, h := range handles {
			sources = append(sources, outbox.Source{
				TenantID: string(h.Tenant),
				Store:    NewOutboxStore(log, h.DB),
			})
		}
		return sources, nil
	}
}

// LockBatch claims pending rows, failed rows still under the attempt limit and
// rows whose lease ran out.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, status, retry_count, last_error
		FROM outbox
		WHERE status = 'pending'
		   OR (status = 'failed' AND retry_count < $2)
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize, maxDeliveryAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var (
			event  outbox.Event
			status string
		)
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload,
			&event.Headers, &event.Traceparent, &event.CreatedAt, &status, &event.RetryCount, &event.LastError); err != nil {
			return nil, err
		}
		event.Status = outbox.Status(status)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status = 'in_progress', relay_id = $1, lease_until = now() + make_interval(secs => $2) WHERE id = ANY($3)`, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Status = outbox.StatusInProgress
		events[i].RelayID = relayID
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.db.Exec(ctx, `UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.Exec(ctx, `UPDATE outbox SET status = 'failed', last_error = $2, retry_count = retry_count + 1, lease_until = NULL WHERE id = $1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.db.Exec(ctx, `UPDATE outbox SET lease_until = now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id = $3`, lease.Seconds(), ids, relayID)
	return err
}
