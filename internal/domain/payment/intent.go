package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidIntentStatus = errors.New("invalid payment intent status")

type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
	IntentRefunded  IntentStatus = "refunded"
)

func (s IntentStatus) IsValid() bool {
	switch s {
	case IntentCreated, IntentSucceeded, IntentFailed, IntentRefunded:
		return true
	default:
		return false
	}
}

func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentFailed, IntentRefunded:
		return true
	default:
		return false
	}
}

// Intent mirrors the payment authority's handle for a charge. The id is
// issued by the authority; at most one non-terminal intent exists per
// booking.
type Intent struct {
	ID             string
	BookingID      uuid.UUID
	AmountCents    int64
	Currency       string
	Status         IntentStatus
	ClientSecret   string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
