package readstore

import (
	"context"

	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type PaymentIntentReadStore struct {
	db db.DBTX
}

func NewPaymentIntentReadStore(dbtx db.DBTX) *PaymentIntentReadStore {
	return &PaymentIntentReadStore{db: dbtx}
}

const intentColumns = `
	id, booking_id, amount_cents, currency, status, client_secret,
	idempotency_key, created_at, updated_at
`

func (r *PaymentIntentReadStore) FindByID(ctx context.Context, intentID string) (*payment.Intent, error) {
	intent, err := r.scanIntent(ctx,
		"SELECT"+intentColumns+"FROM payment_intents WHERE id = $1", intentID)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("payment intent not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find payment intent", err)
	}
	return intent, nil
}

const nonTerminalIntentSQL = `
SELECT` + intentColumns + `
FROM payment_intents
WHERE booking_id = $1 AND status NOT IN ('succeeded', 'refunded', 'failed')
ORDER BY created_at DESC
LIMIT 1
`

func (r *PaymentIntentReadStore) FindNonTerminalByBooking(ctx context.Context, bookingID uuid.UUID) (*payment.Intent, error) {
	intent, err := r.scanIntent(ctx, nonTerminalIntentSQL, pgconv.UUIDToPgtype(bookingID))
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("no open payment intent", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find open payment intent", err)
	}
	return intent, nil
}

func (r *PaymentIntentReadStore) scanIntent(ctx context.Context, query string, args ...any) (*payment.Intent, error) {
	var (
		id, currency, status, clientSecret, idemKey string
		bookingID                                   pgtype.UUID
		amountCents                                 int64
		createdAt, updatedAt                        pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&id, &bookingID, &amountCents, &currency, &status,
		&clientSecret, &idemKey, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment.Intent{
		ID:             id,
		BookingID:      uuid.UUID(bookingID.Bytes),
		AmountCents:    amountCents,
		Currency:       currency,
		Status:         payment.IntentStatus(status),
		ClientSecret:   clientSecret,
		IdempotencyKey: idemKey,
		CreatedAt:      pgconv.TimeFromPgtype(createdAt),
		UpdatedAt:      pgconv.TimeFromPgtype(updatedAt),
	}, nil
}
