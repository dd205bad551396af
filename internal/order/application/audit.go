package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	auditdomain "github.com/dmehra2102/tenant-commerce/internal/audit/domain"
	"github.com/dmehra2102/tenant-commerce/internal/order/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/outbox"
	"github.com/dmehra2102/tenant-commerce/pkg/tracing"
)

// auditMessage stages the audit record for action on o.
func auditMessage(ctx context.Context, action string, o domain.Order, userID string, at time.Time) (outbox.Message, error) {
	rec, err := auditdomain.NewRecord(uuid.NewString(), userID, action, domain.TargetTable, o.ID, o.Snapshot(), at)
	if err != nil {
		return outbox.Message{}, apperr.Infrastructure("orders.audit", err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return outbox.Message{}, apperr.Infrastructure("orders.audit", err)
	}
	return outbox.Message{
		AggregateType: domain.AggregateType,
		AggregateID:   o.ID,
		Type:          auditdomain.EventRecorded,
		Payload:       payload,
		Headers:       map[string]string{"action": action},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}
