package repository

import (
	"context"

	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"
)

type PaymentIntentRepository struct {
	db db.DBTX
}

func NewPaymentIntentRepository(dbtx db.DBTX) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: dbtx}
}

const createIntentSQL = `
INSERT INTO payment_intents (
	id, booking_id, amount_cents, currency, status, client_secret, idempotency_key
) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *payment.Intent) error {
	_, err := r.db.Exec(ctx, createIntentSQL,
		intent.ID,
		pgconv.UUIDToPgtype(intent.BookingID),
		intent.AmountCents,
		intent.Currency,
		string(intent.Status),
		intent.ClientSecret,
		intent.IdempotencyKey,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to create payment intent", err)
	}
	return nil
}

const updateIntentStatusSQL = `
UPDATE payment_intents
SET status = $2, updated_at = now()
WHERE id = $1
`

func (r *PaymentIntentRepository) UpdateStatus(ctx context.Context, intentID string, status payment.IntentStatus) error {
	tag, err := r.db.Exec(ctx, updateIntentStatusSQL, intentID, string(status))
	if err != nil {
		return infra.WrapRepoErr("failed to update payment intent status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("payment intent not found", nil, infra.KindNotFound)
	}
	return nil
}
