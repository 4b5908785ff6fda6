//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"barberbook/internal/domain/payment"
	"barberbook/internal/usecase/shared"

	"go.uber.org/fx"
)

// TestSignature is the only value the fake verifier accepts in the
// Stripe-Signature header.
const TestSignature = "t=0,v1=e2e-valid"

var errBadSignature = errors.New("webhook signature verification failed")

// webhookPayload is the simplified event body e2e tests post to the
// webhook endpoint.
type webhookPayload struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
}

// FakePaymentAuthority stands in for the Stripe gateway and its
// webhook verifier. It honours create idempotency keys and records
// refunds so tests can assert on outbound calls.
type FakePaymentAuthority struct {
	mu      sync.Mutex
	seq     int
	byKey   map[string]*payment.Intent
	refunds []string
}

func NewFakePaymentAuthority() *FakePaymentAuthority {
	return &FakePaymentAuthority{byKey: make(map[string]*payment.Intent)}
}

func (f *FakePaymentAuthority) CreateIntent(_ context.Context, params shared.CreateIntentParams) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byKey[params.IdempotencyKey]; ok {
		clone := *existing
		return &clone, nil
	}

	f.seq++
	now := time.Now().UTC()
	intent := &payment.Intent{
		ID:             fmt.Sprintf("pi_e2e_%d", f.seq),
		BookingID:      params.BookingID,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		Status:         payment.IntentCreated,
		ClientSecret:   fmt.Sprintf("pi_e2e_%d_secret", f.seq),
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.byKey[params.IdempotencyKey] = intent
	clone := *intent
	return &clone, nil
}

func (f *FakePaymentAuthority) Refund(_ context.Context, intentID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, intentID)
	return nil
}

func (f *FakePaymentAuthority) VerifyEvent(payload []byte, signatureHeader string) (*payment.Event, error) {
	if signatureHeader != TestSignature {
		return nil, errBadSignature
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errBadSignature
	}

	kind, ok := payment.KindForStripeEventType(body.Type)
	if !ok {
		return nil, nil
	}
	return &payment.Event{ID: body.ID, IntentID: body.IntentID, Kind: kind}, nil
}

func (f *FakePaymentAuthority) Refunds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refunds...)
}

func (f *FakePaymentAuthority) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey = make(map[string]*payment.Intent)
	f.refunds = nil
}

// FakePaymentModule wires the fake authority in place of the Stripe
// module.
func FakePaymentModule(authority *FakePaymentAuthority) fx.Option {
	return fx.Module("fakepayments",
		fx.Provide(
			func() shared.PaymentGateway { return authority },
			func() shared.WebhookVerifier { return authority },
		),
	)
}
