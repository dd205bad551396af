package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/tenant-commerce/internal/payment/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
)

type fakeGateway struct {
	charges   []domain.Charge
	result    domain.Result
	err       error
	refunds   []string
	keys      []string
	refundErr error
}

func (g *fakeGateway) Charge(_ context.Context, c domain.Charge) (domain.Result, error) {
	g.charges = append(g.charges, c)
	return g.result, g.err
}

func (g *fakeGateway) Refund(_ context.Context, id, key string) error {
	g.refunds = append(g.refunds, id)
	g.keys = append(g.keys, key)
	return g.refundErr
}

func TestProcessCaptures(t *testing.T) {
	gw := &fakeGateway{result: domain.Result{ID: "pi_1", Status: domain.StatusCaptured}}
	svc := NewService(logging.Discard(), gw, "USD")

	rec, err := svc.Process(context.Background(), "acme", decimal.RequireFromString("169.00"), "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", rec.ID)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("169")))
	assert.Equal(t, "captured", rec.Status)

	require.Len(t, gw.charges, 1)
	assert.Equal(t, int64(16900), gw.charges[0].AmountMinor)
	assert.Equal(t, "usd", gw.charges[0].Currency)
	assert.Equal(t, "acme", gw.charges[0].TenantID)
	assert.NotEmpty(t, gw.charges[0].IdempotencyKey)
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name   string
		gw     *fakeGateway
		amount string
		method string
		want   apperr.Kind
	}{
		{"declined", &fakeGateway{result: domain.Result{Status: domain.StatusDeclined, Reason: "card_declined"}}, "10.00", "card", apperr.KindPaymentDeclined},
		{"unreachable", &fakeGateway{err: errors.New("dial tcp: timeout")}, "10.00", "card", apperr.KindInfrastructure},
		{"zero amount", &fakeGateway{}, "0", "card", apperr.KindValidation},
		{"no method", &fakeGateway{}, "10.00", " ", apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(logging.Discard(), tt.gw, "usd")
			_, err := svc.Process(context.Background(), "acme", decimal.RequireFromString(tt.amount), tt.method)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestRefund(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(logging.Discard(), gw, "usd")

	require.NoError(t, svc.Refund(context.Background(), "acme", "pi_1"))
	assert.Equal(t, []string{"pi_1"}, gw.refunds)
	assert.Equal(t, []string{"refund-pi_1"}, gw.keys)

	gw.refundErr = errors.New("boom")
	assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(svc.Refund(context.Background(), "acme", "pi_1")))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(svc.Refund(context.Background(), "acme", "")))
}
