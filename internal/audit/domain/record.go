package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// EventRecorded is the outbox event type carrying a Record.
const EventRecorded = "AuditRecorded"

// Record is one write-only audit log entry. ID is assigned by the producer
// and makes redelivery harmless.
type Record struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Action      string          `json:"action"`
	TargetTable string          `json:"target_table"`
	TargetID    string          `json:"target_id"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.Action) == "":
		return apperr.Validation("audit action is required")
	case strings.TrimSpace(r.TargetTable) == "":
		return apperr.Validation("audit target table is required")
	case strings.TrimSpace(r.TargetID) == "":
		return apperr.Validation("audit target id is required")
	}
	return nil
}

// NewRecord builds a record whose metadata is meta encoded as JSON.
func NewRecord(id, userID, action, table, targetID string, meta any, at time.Time) (Record, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          id,
		UserID:      userID,
		Action:      action,
		TargetTable: table,
		TargetID:    targetID,
		Metadata:    raw,
		OccurredAt:  at,
	}, nil
}
