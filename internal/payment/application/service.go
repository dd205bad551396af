package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderapp "github.com/dmehra2102/tenant-commerce/internal/order/application"
	"github.com/dmehra2102/tenant-commerce/internal/payment/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// Gateway talks to the payment processor. Charge reports a refusal through
// Result.Status rather than an error; errors mean the processor is unreachable
// or misbehaving.
type Gateway interface {
	Charge(ctx context.Context, c domain.Charge) (domain.Result, error)
	Refund(ctx context.Context, chargeID, idempotencyKey string) error
}

type Service struct {
	log      *slog.Logger
	gateway  Gateway
	currency string
	newKey   func() string
}

var _ orderapp.PaymentCapture = (*Service)(nil)

func NewService(log *slog.Logger, gateway Gateway, currency string) *Service {
	return &Service{
		log:      log,
		gateway:  gateway,
		currency: strings.ToLower(currency),
		newKey:   func() string { return uuid.NewString() },
	}
}

func (s *Service) Process(ctx context.Context, tenantID string, amount decimal.Decimal, method string) (orderapp.PaymentReceipt, error) {
	minor, err := domain.MinorUnits(amount)
	if err != nil {
		return orderapp.PaymentReceipt{}, err
	}
	if strings.TrimSpace(method) == "" {
		return orderapp.PaymentReceipt{}, apperr.Validation("payment method is required")
	}

	charge := domain.Charge{
		TenantID:       tenantID,
		AmountMinor:    minor,
		Currency:       s.currency,
		Method:         method,
		IdempotencyKey: s.newKey(),
	}
	res, err := s.gateway.Charge(ctx, charge)
	if err != nil {
		return orderapp.PaymentReceipt{}, apperr.Infrastructure("payment.Process", err)
	}
	if res.Status != domain.StatusCaptured {
		s.log.WarnContext(ctx, "payment declined", "tenant_id", tenantID, "amount", amount.String(), "reason", res.Reason)
		return orderapp.PaymentReceipt{}, apperr.New(apperr.KindPaymentDeclined, "payment declined: %s", res.Reason)
	}

	s.log.InfoContext(ctx, "payment captured", "tenant_id", tenantID, "payment_id", res.ID, "amount", amount.String())
	return orderapp.PaymentReceipt{
		ID:     res.ID,
		Amount: domain.FromMinorUnits(minor),
		Method: method,
		Status: string(res.Status),
	}, nil
}

func (s *Service) Refund(ctx context.Context, tenantID, receiptID string) error {
	if strings.TrimSpace(receiptID) == "" {
		return apperr.Validation("payment id is required")
	}
	if err := s.gateway.Refund(ctx, receiptID, "refund-"+receiptID); err != nil {
		return apperr.Infrastructure("payment.Refund", err)
	}
	s.log.InfoContext(ctx, "payment refunded", "tenant_id", tenantID, "payment_id", receiptID)
	return nil
}
