package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("payment provider not configured")

// RefundRequest asks the payment provider to return Amount (in major units)
// against PaymentRef. IdempotencyKey makes retries safe.
type RefundRequest struct {
	PaymentRef     string
	Amount         float64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// Refunder issues refunds and returns the provider's refund id.
type Refunder interface {
	IssueRefund(ctx context.Context, req RefundRequest) (string, error)
}

// StripeRefunder refunds PaymentIntents through the Stripe API.
type StripeRefunder struct {
	api    *client.API
	logger *zap.Logger
}

func NewStripeRefunder(key string, logger *zap.Logger) *StripeRefunder {
	return NewStripeRefunderWithBackends(key, nil, logger)
}

// NewStripeRefunderWithBackends lets tests point the client at a fake server.
func NewStripeRefunderWithBackends(key string, backends *stripe.Backends, logger *zap.Logger) *StripeRefunder {
	api := &client.API{}
	api.Init(key, backends)
	return &StripeRefunder{api: api, logger: logger}
}

func (s *StripeRefunder) IssueRefund(ctx context.Context, req RefundRequest) (string, error) {
	if req.PaymentRef == "" {
		return "", fmt.Errorf("refund requires a payment reference")
	}
	cents := int64(math.Round(req.Amount * 100))
	if cents <= 0 {
		return "", fmt.Errorf("refund amount must be positive, got %.2f", req.Amount)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentRef),
		Amount:        stripe.Int64(cents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Reason != "" {
		params.AddMetadata("refund_reason", req.Reason)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	r, err := s.api.Refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return "", fmt.Errorf("stripe refund failed (%s): %s", stripeErr.Code, stripeErr.Msg)
		}
		return "", fmt.Errorf("stripe refund failed: %w", err)
	}

	s.logger.Info("Stripe refund created",
		zap.String("refund_id", r.ID),
		zap.String("payment_intent", req.PaymentRef),
		zap.Int64("amount_cents", cents),
	)
	return r.ID, nil
}

// DisabledRefunder is used when no Stripe key is configured.
type DisabledRefunder struct{}

func (DisabledRefunder) IssueRefund(context.Context, RefundRequest) (string, error) {
	return "", ErrNotConfigured
}
