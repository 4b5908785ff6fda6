package readstore

import (
	"context"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type AvailabilityReadStore struct {
	db db.DBTX
}

func NewAvailabilityReadStore(dbtx db.DBTX) *AvailabilityReadStore {
	return &AvailabilityReadStore{db: dbtx}
}

const workingWindowsSQL = `
SELECT weekday, start_minute, end_minute, effective_from, effective_to
FROM availability_windows
WHERE provider_id = $1
ORDER BY weekday, start_minute
`

const blackoutsSQL = `
SELECT lower(span), upper(span)
FROM blackouts
WHERE provider_id = $1
`

func (r *AvailabilityReadStore) ScheduleByProvider(ctx context.Context, providerID uuid.UUID) (availability.Schedule, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1 AND active)",
		pgconv.UUIDToPgtype(providerID)).Scan(&exists)
	if err != nil {
		return availability.Schedule{}, infra.WrapRepoErr("failed to check provider", err)
	}
	if !exists {
		return availability.Schedule{}, infra.WrapRepoErr("provider not found", nil, infra.KindNotFound)
	}

	windows, err := r.loadWindows(ctx, providerID)
	if err != nil {
		return availability.Schedule{}, err
	}
	blackouts, err := r.loadBlackouts(ctx, providerID)
	if err != nil {
		return availability.Schedule{}, err
	}
	return availability.Schedule{Windows: windows, Blackouts: blackouts}, nil
}

func (r *AvailabilityReadStore) loadWindows(ctx context.Context, providerID uuid.UUID) ([]availability.WorkingWindow, error) {
	rows, err := r.db.Query(ctx, workingWindowsSQL, pgconv.UUIDToPgtype(providerID))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load working windows", err)
	}
	defer rows.Close()

	var windows []availability.WorkingWindow
	for rows.Next() {
		var (
			weekday, startMin, endMin int32
			from, to                  pgtype.Timestamptz
		)
		if err := rows.Scan(&weekday, &startMin, &endMin, &from, &to); err != nil {
			return nil, infra.WrapRepoErr("failed to scan working window", err)
		}
		w := availability.WorkingWindow{
			Weekday:     time.Weekday(weekday),
			StartMinute: int(startMin),
			EndMinute:   int(endMin),
		}
		if from.Valid {
			t := from.Time.UTC()
			w.EffectiveFrom = &t
		}
		if to.Valid {
			t := to.Time.UTC()
			w.EffectiveTo = &t
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read working windows", err)
	}
	return windows, nil
}

func (r *AvailabilityReadStore) loadBlackouts(ctx context.Context, providerID uuid.UUID) ([]availability.Interval, error) {
	rows, err := r.db.Query(ctx, blackoutsSQL, pgconv.UUIDToPgtype(providerID))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load blackouts", err)
	}
	defer rows.Close()

	var spans []availability.Interval
	for rows.Next() {
		var start, end pgtype.Timestamptz
		if err := rows.Scan(&start, &end); err != nil {
			return nil, infra.WrapRepoErr("failed to scan blackout", err)
		}
		spans = append(spans, availability.Interval{
			Start: pgconv.TimeFromPgtype(start),
			End:   pgconv.TimeFromPgtype(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read blackouts", err)
	}
	return spans, nil
}

const busyIntervalsSQL = `
SELECT lower(slot), upper(slot)
FROM bookings
WHERE provider_id = $1
  AND status IN ('requested', 'pending_payment', 'confirmed')
  AND slot && tstzrange($2, $3, '[)')
ORDER BY lower(slot)
`

// BusyIntervals returns the slot-holding bookings overlapping the
// range. The status list mirrors the statuses the bookings exclusion
// constraint guards.
func (r *AvailabilityReadStore) BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.db.Query(ctx, busyIntervalsSQL,
		pgconv.UUIDToPgtype(providerID), pgconv.TimeToPgtype(from), pgconv.TimeToPgtype(to))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load busy intervals", err)
	}
	defer rows.Close()

	var busy []availability.Interval
	for rows.Next() {
		var start, end pgtype.Timestamptz
		if err := rows.Scan(&start, &end); err != nil {
			return nil, infra.WrapRepoErr("failed to scan busy interval", err)
		}
		busy = append(busy, availability.Interval{
			Start: pgconv.TimeFromPgtype(start),
			End:   pgconv.TimeFromPgtype(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read busy intervals", err)
	}
	return busy, nil
}
