package postgres

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/tenant-commerce/internal/audit/application"
	"github.com/dmehra2102/tenant-commerce/internal/audit/domain"
	tenantapp "github.com/dmehra2102/tenant-commerce/internal/tenant/application"
	"github.com/dmehra2102/tenant-commerce/pkg/dberr"
)

// Resolver finds a tenant database without creating one. Audit events for a
// tenant that has been dropped must not bring its database back.
type Resolver interface {
	ResolveExisting(ctx context.Context, tenantID string) (*tenantapp.Handle, error)
}

// Recorder stores audit records in the tenant's own audit_logs table.
type Recorder struct {
	log      *slog.Logger
	resolver Resolver
}

var _ application.AuditRecorder = (*Recorder)(nil)

func NewRecorder(log *slog.Logger, resolver Resolver) *Recorder {
	return &Recorder{log: log, resolver: resolver}
}

func (r *Recorder) Record(ctx context.Context, tenantID string, rec domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	h, err := r.resolver.ResolveExisting(ctx, tenantID)
	if err != nil {
		return err
	}

	meta := rec.Metadata
	if len(meta) == 0 {
		meta = []byte(`{}`)
	}
	var key *string
	if rec.ID != "" {
		key = &rec.ID
	}

	ct, err := h.DB.Exec(ctx, `INSERT INTO audit_logs (user_id, action, target_table, target_id, metadata, event_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		ON CONFLICT (event_key) DO NOTHING`,
		rec.UserID, rec.Action, rec.TargetTable, rec.TargetID, string(meta), key, nullTime(rec),
	)
	if err != nil {
		return dberr.Map("audit.Record", err)
	}
	if ct.RowsAffected() == 0 {
		r.log.DebugContext(ctx, "audit record already stored", "tenant_id", tenantID, "audit_id", rec.ID)
	}
	return nil
}

func nullTime(rec domain.Record) any {
	if rec.OccurredAt.IsZero() {
		return nil
	}
	return rec.OccurredAt
}
