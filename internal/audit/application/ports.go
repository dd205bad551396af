package application

import (
	"context"

	"github.com/dmehra2102/tenant-commerce/internal/audit/domain"
)

// AuditRecorder writes audit records. It never reads them back.
type AuditRecorder interface {
	Record(ctx context.Context, tenantID string, rec domain.Record) error
}
