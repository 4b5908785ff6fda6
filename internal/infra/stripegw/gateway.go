// Package stripegw adapts the Stripe API to the payment ports. It is
// the only package that sees Stripe types; everything past the
// verifier works on domain events.
package stripegw

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"barberbook/internal/domain/payment"
	"barberbook/internal/pkg/config"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/shared"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrSignatureInvalid = errs.New("webhook signature verification failed")

type Gateway struct {
	cfg config.StripeConfig
}

func NewGateway(cfg config.Config) *Gateway {
	stripe.Key = cfg.Stripe.SecretKey
	return &Gateway{cfg: cfg.Stripe}
}

func (g *Gateway) CreateIntent(ctx context.Context, p shared.CreateIntentParams) (*payment.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
	}
	params.Context = callCtx
	params.SetIdempotencyKey(p.IdempotencyKey)
	params.AddMetadata("booking_id", p.BookingID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, mapCallErr(err, "failed to create payment intent")
	}

	return &payment.Intent{
		ID:             pi.ID,
		BookingID:      p.BookingID,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
		Status:         payment.IntentCreated,
		ClientSecret:   pi.ClientSecret,
		IdempotencyKey: p.IdempotencyKey,
	}, nil
}

func (g *Gateway) Refund(ctx context.Context, intentID, idempotencyKey string) error {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = callCtx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := refund.New(params); err != nil {
		return mapCallErr(err, "failed to refund payment intent")
	}
	return nil
}

// VerifyEvent authenticates the raw webhook body and reduces it to a
// domain event. Event types outside the reconciliation set come back
// as (nil, nil) so the handler can acknowledge without processing.
func (g *Gateway) VerifyEvent(body []byte, signatureHeader string) (*payment.Event, error) {
	ev, err := webhook.ConstructEvent(body, signatureHeader, g.cfg.WebhookSecret)
	if err != nil {
		return nil, errs.Mark(err, ErrSignatureInvalid)
	}

	kind, ok := payment.KindForStripeEventType(string(ev.Type))
	if !ok {
		return nil, nil
	}

	intentID, err := intentIDFromEvent(ev, kind)
	if err != nil {
		return nil, err
	}
	return &payment.Event{
		ID:       ev.ID,
		IntentID: intentID,
		Kind:     kind,
	}, nil
}

func intentIDFromEvent(ev stripe.Event, kind payment.EventKind) (string, error) {
	if kind == payment.EventRefunded {
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return "", errs.Wrap(err, "failed to decode charge payload")
		}
		if ch.PaymentIntent == nil {
			return "", errs.New("charge payload has no payment intent")
		}
		return ch.PaymentIntent.ID, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return "", errs.Wrap(err, "failed to decode payment intent payload")
	}
	return pi.ID, nil
}

func mapCallErr(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Mark(err, shared.ErrGatewayTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Mark(err, shared.ErrGatewayTimeout)
	}
	return errs.Wrap(err, msg)
}
