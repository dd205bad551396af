package domain

import "github.com/shopspring/decimal"

const (
	AggregateType = "order"
	TargetTable   = "orders"
)

// Audit actions recorded for order mutations.
const (
	AuditCreated   = "order.created"
	AuditUpdated   = "order.updated"
	AuditConfirmed = "order.confirmed"
	AuditShipped   = "order.shipped"
	AuditDelivered = "order.delivered"
	AuditCancelled = "order.cancelled"
	AuditDeleted   = "order.deleted"
	AuditRestored  = "order.restored"
)

var actionAudit = map[Action]string{
	ActionConfirm:  AuditConfirmed,
	ActionShip:     AuditShipped,
	ActionComplete: AuditDelivered,
	ActionCancel:   AuditCancelled,
}

func (a Action) AuditAction() string { return actionAudit[a] }

// Snapshot is the audit metadata describing an order at one point in time.
type Snapshot struct {
	Code        string          `json:"code"`
	CustomerID  string          `json:"customer_id"`
	Status      Status          `json:"status"`
	IsDeleted   bool            `json:"is_deleted"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	PaymentRef  string          `json:"payment_reference,omitempty"`
	Version     int64           `json:"version"`
}

func (o Order) Snapshot() Snapshot {
	return Snapshot{
		Code:        o.Code,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		IsDeleted:   o.IsDeleted,
		ItemCount:   len(o.Items),
		TotalAmount: o.TotalAmount,
		TotalPaid:   o.TotalPaid,
		PaymentRef:  o.PaymentReference,
		Version:     o.Version,
	}
}
