package shared

import (
	"context"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/domain/booking"
	"barberbook/internal/domain/payment"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: full read-write transaction with retry on serialization
	// failures. Booking-affecting work must lock the provider first via
	// Tx.LockProvider.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// CommandReads: reads outside any transaction, for validation and
	// idempotency pre-checks.
	CommandReads() CommandReads
}

type Tx interface {
	// LockProvider takes the provider-scoped critical section for the
	// rest of the transaction. All booking-affecting writers for one
	// provider serialize here; other providers proceed independently.
	LockProvider(ctx context.Context, providerID uuid.UUID) error

	Bookings() BookingRepository
	Intents() PaymentIntentRepository
	Idempotency() IdempotencyRepository
	Reads() CommandReads
}

type BookingRepository interface {
	Create(ctx context.Context, b *booking.Booking) error
	// Transition applies a version-guarded status change; a stale
	// expected version yields KindStaleVersion.
	Transition(ctx context.Context, id uuid.UUID, expectedVersion int32, next booking.Status) error
	SetPaymentIntent(ctx context.Context, id uuid.UUID, expectedVersion int32, intentID string) error
}

type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *payment.Intent) error
	UpdateStatus(ctx context.Context, intentID string, status payment.IntentStatus) error
}

type IdempotencyRepository interface {
	// TryInsert claims (kind, key) if absent. claimed is false when the
	// key already exists; callers read the row back to decide replay
	// vs. in-progress.
	TryInsert(ctx context.Context, kind OpKind, key, requestHash string, expiresAt time.Time) (claimed bool, err error)
	Complete(ctx context.Context, kind OpKind, key string, resultBookingID *uuid.UUID, resultCode string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type CommandReads interface {
	ProviderByID(ctx context.Context, id uuid.UUID) (*ProviderSnapshot, error)
	ServiceByID(ctx context.Context, providerID, serviceID uuid.UUID) (*ServiceSnapshot, error)
	ScheduleByProvider(ctx context.Context, providerID uuid.UUID) (availability.Schedule, error)
	// BusyIntervals are the slot-holding bookings for the provider in
	// the range, the only booking fields conflict detection depends on.
	BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error)
	BookingByID(ctx context.Context, id uuid.UUID) (*BookingSnapshot, error)
	IntentByID(ctx context.Context, intentID string) (*payment.Intent, error)
	NonTerminalIntentByBooking(ctx context.Context, bookingID uuid.UUID) (*payment.Intent, error)
	IdempotencyByKey(ctx context.Context, kind OpKind, key string) (*IdempotencyRecord, error)
	DuePendingBookings(ctx context.Context, now time.Time, limit int) ([]*BookingSnapshot, error)
}
