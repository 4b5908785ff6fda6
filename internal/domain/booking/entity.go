package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrNegativePrice     = errors.New("price cannot be negative")
	ErrEmptyServiceName  = errors.New("service name is required")
)

type Booking struct {
	id              uuid.UUID
	providerID      uuid.UUID
	customerID      uuid.UUID
	serviceID       uuid.UUID
	serviceName     string
	priceCents      int64
	slot            TimeSlot
	status          Status
	paymentIntentID *string
	paymentDueAt    time.Time
	idempotencyKey  string
	version         int32
	createdAt       time.Time
	updatedAt       time.Time
}

// NewBooking creates a slot-holding booking. It is born requested and
// immediately moved to pending_payment; the two states are persisted as
// one insert, requested existing only as the reconciler's attach point.
func NewBooking(
	providerID, customerID, serviceID uuid.UUID,
	serviceName string,
	priceCents int64,
	slot TimeSlot,
	idempotencyKey string,
	now time.Time,
	paymentTTL time.Duration,
) (*Booking, error) {
	if serviceName == "" {
		return nil, ErrEmptyServiceName
	}
	if priceCents < 0 {
		return nil, ErrNegativePrice
	}
	if err := slot.ValidateNotPastAt(now); err != nil {
		return nil, err
	}

	b := &Booking{
		id:             uuid.New(),
		providerID:     providerID,
		customerID:     customerID,
		serviceID:      serviceID,
		serviceName:    serviceName,
		priceCents:     priceCents,
		slot:           slot,
		status:         StatusRequested,
		paymentDueAt:   now.Add(paymentTTL),
		idempotencyKey: idempotencyKey,
		version:        1,
	}
	if err := b.TransitionTo(StatusPendingPayment); err != nil {
		return nil, err
	}
	return b, nil
}

func ReconstructBooking(
	id, providerID, customerID, serviceID uuid.UUID,
	serviceName string,
	priceCents int64,
	slot TimeSlot,
	status Status,
	paymentIntentID *string,
	paymentDueAt time.Time,
	idempotencyKey string,
	version int32,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:              id,
		providerID:      providerID,
		customerID:      customerID,
		serviceID:       serviceID,
		serviceName:     serviceName,
		priceCents:      priceCents,
		slot:            slot,
		status:          status,
		paymentIntentID: paymentIntentID,
		paymentDueAt:    paymentDueAt,
		idempotencyKey:  idempotencyKey,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func (b *Booking) TransitionTo(next Status) error {
	if !b.status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	b.status = next
	return nil
}

func (b *Booking) PaymentOverdue(now time.Time) bool {
	return b.status == StatusPendingPayment && now.After(b.paymentDueAt)
}

// CancelableAt enforces the customer cancel window against the
// appointment start.
func (b *Booking) CancelableAt(now time.Time, cutoff time.Duration) bool {
	return b.slot.Start().Sub(now) >= cutoff
}

func (b *Booking) ID() uuid.UUID            { return b.id }
func (b *Booking) ProviderID() uuid.UUID    { return b.providerID }
func (b *Booking) CustomerID() uuid.UUID    { return b.customerID }
func (b *Booking) ServiceID() uuid.UUID     { return b.serviceID }
func (b *Booking) ServiceName() string      { return b.serviceName }
func (b *Booking) PriceCents() int64        { return b.priceCents }
func (b *Booking) Slot() TimeSlot           { return b.slot }
func (b *Booking) Status() Status           { return b.status }
func (b *Booking) PaymentIntentID() *string { return b.paymentIntentID }
func (b *Booking) PaymentDueAt() time.Time  { return b.paymentDueAt }
func (b *Booking) IdempotencyKey() string   { return b.idempotencyKey }
func (b *Booking) Version() int32           { return b.version }
func (b *Booking) CreatedAt() time.Time     { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time     { return b.updatedAt }
