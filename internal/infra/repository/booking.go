package repository

import (
	"context"

	"barberbook/internal/domain/booking"
	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"

	"github.com/google/uuid"
)

type BookingRepository struct {
	db db.DBTX
}

func NewBookingRepository(dbtx db.DBTX) *BookingRepository {
	return &BookingRepository{db: dbtx}
}

const createBookingSQL = `
INSERT INTO bookings (
	id, provider_id, customer_id, service_id, service_name, price_cents,
	slot, status, payment_due_at, idempotency_key, version
) VALUES ($1, $2, $3, $4, $5, $6, $7::tstzrange, $8, $9, $10, $11)
`

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	_, err := r.db.Exec(ctx, createBookingSQL,
		pgconv.UUIDToPgtype(b.ID()),
		pgconv.UUIDToPgtype(b.ProviderID()),
		pgconv.UUIDToPgtype(b.CustomerID()),
		pgconv.UUIDToPgtype(b.ServiceID()),
		b.ServiceName(),
		b.PriceCents(),
		b.Slot().ToTstzrange(),
		string(b.Status()),
		pgconv.TimeToPgtype(b.PaymentDueAt()),
		b.IdempotencyKey(),
		b.Version(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to create booking", err)
	}
	return nil
}

const transitionBookingSQL = `
UPDATE bookings
SET status = $3, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
`

// Transition is the version-guarded write every status change funnels
// through. Zero rows updated means the caller read a stale version.
func (r *BookingRepository) Transition(ctx context.Context, id uuid.UUID, expectedVersion int32, next booking.Status) error {
	tag, err := r.db.Exec(ctx, transitionBookingSQL,
		pgconv.UUIDToPgtype(id), expectedVersion, string(next))
	if err != nil {
		return infra.WrapRepoErr("failed to transition booking", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("booking version is stale", nil, infra.KindStaleVersion)
	}
	return nil
}

const setPaymentIntentSQL = `
UPDATE bookings
SET payment_intent_id = $3, updated_at = now()
WHERE id = $1 AND version = $2
`

func (r *BookingRepository) SetPaymentIntent(ctx context.Context, id uuid.UUID, expectedVersion int32, intentID string) error {
	tag, err := r.db.Exec(ctx, setPaymentIntentSQL,
		pgconv.UUIDToPgtype(id), expectedVersion, intentID)
	if err != nil {
		return infra.WrapRepoErr("failed to attach payment intent", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("booking version is stale", nil, infra.KindStaleVersion)
	}
	return nil
}
