//go:build unit || e2e

package builder

import (
	"time"

	dombooking "barberbook/internal/domain/booking"
	reqdto "barberbook/internal/handler/dto/request"
	"barberbook/internal/usecase/queries"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
)

type BookingBuilder struct {
	ID             uuid.UUID
	ProviderID     uuid.UUID
	CustomerID     uuid.UUID
	ServiceID      uuid.UUID
	ServiceName    string
	PriceCents     int64
	DurationMin    int32
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	IdempotencyKey string
	Now            time.Time
	PaymentTTL     time.Duration
	Version        int32
}

func NewBookingBuilder() *BookingBuilder {
	now := time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC) // a Monday
	start := now.Add(24 * time.Hour)
	return &BookingBuilder{
		ID:             uuid.New(),
		ProviderID:     uuid.New(),
		CustomerID:     uuid.New(),
		ServiceID:      uuid.New(),
		ServiceName:    "Classic Cut",
		PriceCents:     3500,
		DurationMin:    30,
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		Status:         string(dombooking.StatusPendingPayment),
		IdempotencyKey: "test-idem-key",
		Now:            now,
		PaymentTTL:     15 * time.Minute,
		Version:        1,
	}
}

func (b *BookingBuilder) With(mutate func(*BookingBuilder)) *BookingBuilder {
	mutate(b)
	return b
}

func (b *BookingBuilder) BuildDomain() (*dombooking.Booking, error) {
	slot, err := dombooking.NewTimeSlot(b.StartTime, b.EndTime)
	if err != nil {
		return nil, err
	}
	return dombooking.NewBooking(
		b.ProviderID, b.CustomerID, b.ServiceID,
		b.ServiceName, b.PriceCents,
		slot, b.IdempotencyKey,
		b.Now, b.PaymentTTL,
	)
}

func (b *BookingBuilder) BuildView() *queries.BookingView {
	return &queries.BookingView{
		ID:           b.ID,
		ProviderID:   b.ProviderID,
		CustomerID:   b.CustomerID,
		ServiceID:    b.ServiceID,
		ServiceName:  b.ServiceName,
		PriceCents:   b.PriceCents,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       b.Status,
		PaymentDueAt: b.Now.Add(b.PaymentTTL),
		Version:      b.Version,
		CreatedAt:    b.Now,
		UpdatedAt:    b.Now,
	}
}

func (b *BookingBuilder) BuildSnapshot() *shared.BookingSnapshot {
	return &shared.BookingSnapshot{
		ID:             b.ID,
		ProviderID:     b.ProviderID,
		CustomerID:     b.CustomerID,
		ServiceID:      b.ServiceID,
		ServiceName:    b.ServiceName,
		PriceCents:     b.PriceCents,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Status:         b.Status,
		PaymentDueAt:   b.Now.Add(b.PaymentTTL),
		IdempotencyKey: b.IdempotencyKey,
		Version:        b.Version,
		CreatedAt:      b.Now,
		UpdatedAt:      b.Now,
	}
}

func (b *BookingBuilder) BuildProviderSnapshot() *shared.ProviderSnapshot {
	return &shared.ProviderSnapshot{
		ID:          b.ProviderID,
		DisplayName: "Test Barber",
		Active:      true,
	}
}

func (b *BookingBuilder) BuildServiceSnapshot() *shared.ServiceSnapshot {
	return &shared.ServiceSnapshot{
		ID:          b.ServiceID,
		ProviderID:  b.ProviderID,
		Name:        b.ServiceName,
		PriceCents:  b.PriceCents,
		DurationMin: b.DurationMin,
	}
}

func (b *BookingBuilder) BuildCreateRequestDTO() reqdto.CreateBookingRequest {
	return reqdto.CreateBookingRequest{
		ProviderID: b.ProviderID,
		ServiceID:  b.ServiceID,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
}
