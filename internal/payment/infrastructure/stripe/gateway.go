// Package stripe captures order payments as confirmed Stripe PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/dmehra2102/tenant-commerce/internal/payment/application"
	"github.com/dmehra2102/tenant-commerce/internal/payment/domain"
)

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type refundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type clients struct {
	intents intentAPI
	refunds refundAPI
}

type Config struct {
	APIKey   string
	Backends *stripe.Backends
	clients  *clients
}

type Gateway struct {
	log *slog.Logger
	api clients
}

var _ application.Gateway = (*Gateway)(nil)

func NewGateway(log *slog.Logger, cfg Config) (*Gateway, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" && cfg.clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var api clients
	if cfg.clients != nil {
		api = *cfg.clients
	} else {
		sc := client.New(key, cfg.Backends)
		api = clients{intents: sc.PaymentIntents, refunds: sc.Refunds}
	}
	if api.intents == nil || api.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}
	return &Gateway{log: log, api: api}, nil
}

// Charge creates and confirms a card PaymentIntent in one call. Card errors
// and intents that did not settle are reported as declines.
func (g *Gateway) Charge(ctx context.Context, c domain.Charge) (domain.Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(c.AmountMinor),
		Currency:           stripe.String(c.Currency),
		PaymentMethod:      stripe.String(c.Method),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Metadata:           map[string]string{"tenant_id": c.TenantID},
	}
	params.Context = ctx
	if c.IdempotencyKey != "" {
		params.SetIdempotencyKey(c.IdempotencyKey)
	}

	intent, err := g.api.intents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			return domain.Result{Status: domain.StatusDeclined, Reason: declineReason(se)}, nil
		}
		return domain.Result{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	g.log.InfoContext(ctx, "payments.stripe.intent.created", "payment_intent", intent.ID, "status", intent.Status)
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return domain.Result{ID: intent.ID, Status: domain.StatusDeclined, Reason: string(intent.Status)}, nil
	}
	return domain.Result{ID: intent.ID, Status: domain.StatusCaptured}, nil
}

func (g *Gateway) Refund(ctx context.Context, chargeID, idempotencyKey string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(chargeID)}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	if _, err := g.api.refunds.New(params); err != nil {
		return fmt.Errorf("stripe: refund payment intent: %w", err)
	}
	g.log.InfoContext(ctx, "payments.stripe.intent.refunded", "payment_intent", chargeID)
	return nil
}

func declineReason(se *stripe.Error) string {
	switch {
	case se.DeclineCode != "":
		return string(se.DeclineCode)
	case se.Code != "":
		return string(se.Code)
	default:
		return se.Msg
	}
}
