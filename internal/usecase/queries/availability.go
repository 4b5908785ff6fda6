package queries

import (
	"context"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/infra"
	"barberbook/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound = errs.New("provider not found")
	ErrInvalidRange     = errs.New("invalid availability range")
)

const maxAvailabilityRange = 31 * 24 * time.Hour

// AvailabilityReadStore loads one provider's calendar inputs. A
// caching decorator may sit in front of it; the authoritative re-check
// at reservation time never goes through this interface.
type AvailabilityReadStore interface {
	ScheduleByProvider(ctx context.Context, providerID uuid.UUID) (availability.Schedule, error)
	BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error)
}

type AvailabilityQueries interface {
	FreeSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time, duration time.Duration) ([]FreeSlot, error)
}

type availabilityQueriesImpl struct {
	store AvailabilityReadStore
}

func NewAvailabilityQueries(store AvailabilityReadStore) AvailabilityQueries {
	return &availabilityQueriesImpl{store: store}
}

func (q *availabilityQueriesImpl) FreeSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time, duration time.Duration) ([]FreeSlot, error) {
	if !from.Before(to) || duration <= 0 || to.Sub(from) > maxAvailabilityRange {
		return nil, ErrInvalidRange
	}

	schedule, err := q.store.ScheduleByProvider(ctx, providerID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, ErrProviderNotFound)
		}
		return nil, err
	}
	busy, err := q.store.BusyIntervals(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}

	intervals := schedule.FreeSlots(from, to, duration, 0, busy)
	slots := make([]FreeSlot, len(intervals))
	for i, iv := range intervals {
		slots[i] = FreeSlot{StartTime: iv.Start, EndTime: iv.End}
	}
	return slots, nil
}
