package shared

import (
	"time"

	"github.com/google/uuid"
)

// OpKind partitions the idempotency ledger by operation.
type OpKind string

const (
	OpBookingRequest OpKind = "booking_request"
	OpPaymentEvent   OpKind = "payment_event"
)

// Idempotency ledger entry statuses.
const (
	IdemStatusProcessing = "processing"
	IdemStatusCompleted  = "completed"
)

// Stored outcome codes for completed ledger entries.
const (
	ResultCreated  = "created"
	ResultConflict = "conflict"
	ResultApplied  = "applied"
	ResultIgnored  = "ignored"
)

type ProviderSnapshot struct {
	ID          uuid.UUID
	DisplayName string
	Active      bool
}

type ServiceSnapshot struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Name        string
	PriceCents  int64
	DurationMin int32
}

// BookingSnapshot is the narrow read contract commands depend on, not
// a whole entity graph.
type BookingSnapshot struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	CustomerID      uuid.UUID
	ServiceID       uuid.UUID
	ServiceName     string
	PriceCents      int64
	StartTime       time.Time
	EndTime         time.Time
	Status          string
	PaymentIntentID *string
	PaymentDueAt    time.Time
	IdempotencyKey  string
	Version         int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type IdempotencyRecord struct {
	Kind            OpKind
	Key             string
	Status          string
	RequestHash     string
	ResultBookingID *uuid.UUID
	ResultCode      *string
	ExpiresAt       time.Time
}
