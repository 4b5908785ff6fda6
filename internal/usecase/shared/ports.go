package shared

import (
	"context"

	"barberbook/internal/domain/payment"
	"barberbook/internal/pkg/errs"

	"github.com/google/uuid"
)

// ErrGatewayTimeout marks a payment-authority call that did not answer
// in time. The booking stays pending_payment; the sweeper resolves it.
var ErrGatewayTimeout = errs.New("payment authority timeout")

type CreateIntentParams struct {
	BookingID   uuid.UUID
	AmountCents int64
	Currency    string
	// IdempotencyKey is derived from the booking id so retried create
	// calls return the same intent instead of opening duplicates.
	IdempotencyKey string
}

// PaymentGateway crosses the network boundary to the payment
// authority. Both calls are blocking-with-timeout.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*payment.Intent, error)
	Refund(ctx context.Context, intentID, idempotencyKey string) error
}

// WebhookVerifier authenticates a raw provider notification. Payloads
// that fail verification never reach the reconciler.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*payment.Event, error)
}

// AvailabilityCache invalidation hook; booking-affecting writes call
// Invalidate so cached free-slot projections never outlive a write.
type AvailabilityCache interface {
	Invalidate(ctx context.Context, providerID uuid.UUID)
}
