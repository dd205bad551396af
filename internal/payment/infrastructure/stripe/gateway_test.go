package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/dmehra2102/tenant-commerce/internal/payment/domain"
	"github.com/dmehra2102/tenant-commerce/pkg/logging"
)

type fakeIntents struct {
	params []*stripe.PaymentIntentParams
	intent *stripe.PaymentIntent
	err    error
}

func (f *fakeIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = append(f.params, p)
	return f.intent, f.err
}

type fakeRefunds struct {
	params []*stripe.RefundParams
	err    error
}

func (f *fakeRefunds) New(p *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = append(f.params, p)
	return &stripe.Refund{ID: "re_1"}, f.err
}

func newTestGateway(t *testing.T, in *fakeIntents, re *fakeRefunds) *Gateway {
	t.Helper()
	g, err := NewGateway(logging.Discard(), Config{clients: &clients{intents: in, refunds: re}})
	require.NoError(t, err)
	return g
}

func TestNewGatewayRequiresKey(t *testing.T) {
	_, err := NewGateway(logging.Discard(), Config{})
	assert.Error(t, err)
}

func TestChargeSucceeded(t *testing.T) {
	in := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}}
	g := newTestGateway(t, in, &fakeRefunds{})

	res, err := g.Charge(context.Background(), domain.Charge{
		TenantID: "acme", AmountMinor: 16900, Currency: "usd", Method: "pm_card_visa", IdempotencyKey: "k-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Result{ID: "pi_1", Status: domain.StatusCaptured}, res)

	require.Len(t, in.params, 1)
	p := in.params[0]
	assert.Equal(t, int64(16900), *p.Amount)
	assert.Equal(t, "usd", *p.Currency)
	assert.Equal(t, "pm_card_visa", *p.PaymentMethod)
	assert.True(t, *p.Confirm)
	assert.Equal(t, "acme", p.Metadata["tenant_id"])
	assert.Equal(t, "k-1", *p.IdempotencyKey)
}

func TestChargeDeclines(t *testing.T) {
	card := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, DeclineCode: "insufficient_funds"}
	g := newTestGateway(t, &fakeIntents{err: card}, &fakeRefunds{})
	res, err := g.Charge(context.Background(), domain.Charge{AmountMinor: 100, Currency: "usd", Method: "pm"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, res.Status)
	assert.Equal(t, "insufficient_funds", res.Reason)

	pending := &stripe.PaymentIntent{ID: "pi_2", Status: stripe.PaymentIntentStatusRequiresAction}
	g = newTestGateway(t, &fakeIntents{intent: pending}, &fakeRefunds{})
	res, err = g.Charge(context.Background(), domain.Charge{AmountMinor: 100, Currency: "usd", Method: "pm"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, res.Status)
	assert.Equal(t, "requires_action", res.Reason)
}

func TestChargeTransportError(t *testing.T) {
	api := &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "internal"}
	g := newTestGateway(t, &fakeIntents{err: api}, &fakeRefunds{})
	_, err := g.Charge(context.Background(), domain.Charge{AmountMinor: 100, Currency: "usd", Method: "pm"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api)
}

func TestRefund(t *testing.T) {
	re := &fakeRefunds{}
	g := newTestGateway(t, &fakeIntents{}, re)

	require.NoError(t, g.Refund(context.Background(), "pi_1", "refund-pi_1"))
	require.Len(t, re.params, 1)
	assert.Equal(t, "pi_1", *re.params[0].PaymentIntent)
	assert.Equal(t, "refund-pi_1", *re.params[0].IdempotencyKey)

	re.err = errors.New("boom")
	assert.Error(t, g.Refund(context.Background(), "pi_1", ""))
}
