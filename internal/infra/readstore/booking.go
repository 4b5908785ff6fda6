package readstore

import (
	"context"
	"time"

	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"
	"barberbook/internal/usecase/queries"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type BookingReadStore struct {
	db db.DBTX
}

func NewBookingReadStore(dbtx db.DBTX) *BookingReadStore {
	return &BookingReadStore{db: dbtx}
}

const bookingColumns = `
	id, provider_id, customer_id, service_id, service_name, price_cents,
	lower(slot), upper(slot), status, payment_intent_id, payment_due_at,
	idempotency_key, version, created_at, updated_at
`

type bookingRow struct {
	ID              pgtype.UUID
	ProviderID      pgtype.UUID
	CustomerID      pgtype.UUID
	ServiceID       pgtype.UUID
	ServiceName     string
	PriceCents      int64
	StartTime       pgtype.Timestamptz
	EndTime         pgtype.Timestamptz
	Status          string
	PaymentIntentID pgtype.Text
	PaymentDueAt    pgtype.Timestamptz
	IdempotencyKey  string
	Version         int32
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

func (r *BookingReadStore) scanRow(ctx context.Context, query string, args ...any) (*bookingRow, error) {
	var row bookingRow
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&row.ID, &row.ProviderID, &row.CustomerID, &row.ServiceID,
		&row.ServiceName, &row.PriceCents, &row.StartTime, &row.EndTime,
		&row.Status, &row.PaymentIntentID, &row.PaymentDueAt,
		&row.IdempotencyKey, &row.Version, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *BookingReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.BookingView, error) {
	row, err := r.scanRow(ctx,
		"SELECT"+bookingColumns+"FROM bookings WHERE id = $1",
		pgconv.UUIDToPgtype(id))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking by ID", err)
	}
	return rowToBookingView(row), nil
}

func rowToBookingView(row *bookingRow) *queries.BookingView {
	return &queries.BookingView{
		ID:              uuid.UUID(row.ID.Bytes),
		ProviderID:      uuid.UUID(row.ProviderID.Bytes),
		CustomerID:      uuid.UUID(row.CustomerID.Bytes),
		ServiceID:       uuid.UUID(row.ServiceID.Bytes),
		ServiceName:     row.ServiceName,
		PriceCents:      row.PriceCents,
		StartTime:       pgconv.TimeFromPgtype(row.StartTime),
		EndTime:         pgconv.TimeFromPgtype(row.EndTime),
		Status:          row.Status,
		PaymentIntentID: pgconv.StringPtrFromPgtype(row.PaymentIntentID),
		PaymentDueAt:    pgconv.TimeFromPgtype(row.PaymentDueAt),
		Version:         row.Version,
		CreatedAt:       pgconv.TimeFromPgtype(row.CreatedAt),
		UpdatedAt:       pgconv.TimeFromPgtype(row.UpdatedAt),
	}
}

const listByCustomerSQL = `
SELECT id, provider_id, service_name, price_cents, lower(slot), upper(slot), status, created_at
FROM bookings
WHERE customer_id = $1
ORDER BY lower(slot) DESC, id DESC
LIMIT $2
`

func (r *BookingReadStore) FindByCustomerID(ctx context.Context, customerID uuid.UUID, limit int32) ([]*queries.BookingListItem, error) {
	rows, err := r.db.Query(ctx, listByCustomerSQL, pgconv.UUIDToPgtype(customerID), limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list bookings by customer", err)
	}
	defer rows.Close()

	var items []*queries.BookingListItem
	for rows.Next() {
		var (
			id, providerID       pgtype.UUID
			serviceName, status  string
			priceCents           int64
			start, end, createdA pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &providerID, &serviceName, &priceCents, &start, &end, &status, &createdA); err != nil {
			return nil, infra.WrapRepoErr("failed to scan booking list row", err)
		}
		items = append(items, &queries.BookingListItem{
			ID:          uuid.UUID(id.Bytes),
			ProviderID:  uuid.UUID(providerID.Bytes),
			ServiceName: serviceName,
			PriceCents:  priceCents,
			StartTime:   pgconv.TimeFromPgtype(start),
			EndTime:     pgconv.TimeFromPgtype(end),
			Status:      status,
			CreatedAt:   pgconv.TimeFromPgtype(createdA),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read booking list rows", err)
	}
	return items, nil
}

func (r *BookingReadStore) SnapshotByID(ctx context.Context, id uuid.UUID) (*shared.BookingSnapshot, error) {
	row, err := r.scanRow(ctx,
		"SELECT"+bookingColumns+"FROM bookings WHERE id = $1",
		pgconv.UUIDToPgtype(id))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking by ID", err)
	}
	return rowToSnapshot(row), nil
}

func rowToSnapshot(row *bookingRow) *shared.BookingSnapshot {
	return &shared.BookingSnapshot{
		ID:              uuid.UUID(row.ID.Bytes),
		ProviderID:      uuid.UUID(row.ProviderID.Bytes),
		CustomerID:      uuid.UUID(row.CustomerID.Bytes),
		ServiceID:       uuid.UUID(row.ServiceID.Bytes),
		ServiceName:     row.ServiceName,
		PriceCents:      row.PriceCents,
		StartTime:       pgconv.TimeFromPgtype(row.StartTime),
		EndTime:         pgconv.TimeFromPgtype(row.EndTime),
		Status:          row.Status,
		PaymentIntentID: pgconv.StringPtrFromPgtype(row.PaymentIntentID),
		PaymentDueAt:    pgconv.TimeFromPgtype(row.PaymentDueAt),
		IdempotencyKey:  row.IdempotencyKey,
		Version:         row.Version,
		CreatedAt:       pgconv.TimeFromPgtype(row.CreatedAt),
		UpdatedAt:       pgconv.TimeFromPgtype(row.UpdatedAt),
	}
}

const duePendingSQL = `
SELECT` + bookingColumns + `
FROM bookings
WHERE status = 'pending_payment' AND payment_due_at < $1
ORDER BY payment_due_at
LIMIT $2
`

// DuePending scans for bookings whose payment window has lapsed. The
// caller re-checks each one under the provider lock before expiring.
func (r *BookingReadStore) DuePending(ctx context.Context, now time.Time, limit int) ([]*shared.BookingSnapshot, error) {
	rows, err := r.db.Query(ctx, duePendingSQL, pgconv.TimeToPgtype(now), limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan due pending bookings", err)
	}
	defer rows.Close()

	var snaps []*shared.BookingSnapshot
	for rows.Next() {
		var row bookingRow
		if err := rows.Scan(
			&row.ID, &row.ProviderID, &row.CustomerID, &row.ServiceID,
			&row.ServiceName, &row.PriceCents, &row.StartTime, &row.EndTime,
			&row.Status, &row.PaymentIntentID, &row.PaymentDueAt,
			&row.IdempotencyKey, &row.Version, &row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan due pending row", err)
		}
		snaps = append(snaps, rowToSnapshot(&row))
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read due pending rows", err)
	}
	return snaps, nil
}
