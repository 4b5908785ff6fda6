package repository

import (
	"context"
	"time"

	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
)

type IdempotencyRepository struct {
	db db.DBTX
}

func NewIdempotencyRepository(dbtx db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: dbtx}
}

const tryInsertLedgerSQL = `
INSERT INTO idempotency_records (kind, key, status, request_hash, expires_at)
VALUES ($1, $2, 'processing', $3, $4)
ON CONFLICT (kind, key) DO NOTHING
`

// TryInsert claims (kind, key). ON CONFLICT DO NOTHING keeps the
// statement race-free; the row count tells first writer from repeat.
func (r *IdempotencyRepository) TryInsert(ctx context.Context, kind shared.OpKind, key, requestHash string, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, tryInsertLedgerSQL,
		string(kind), key, requestHash, pgconv.TimeToPgtype(expiresAt))
	if err != nil {
		return false, infra.WrapRepoErr("failed to claim idempotency key", err)
	}
	return tag.RowsAffected() == 1, nil
}

const completeLedgerSQL = `
UPDATE idempotency_records
SET status = 'completed', result_booking_id = $3, result_code = $4, updated_at = now()
WHERE kind = $1 AND key = $2
`

func (r *IdempotencyRepository) Complete(ctx context.Context, kind shared.OpKind, key string, resultBookingID *uuid.UUID, resultCode string) error {
	tag, err := r.db.Exec(ctx, completeLedgerSQL,
		string(kind), key, pgconv.UUIDPtrToPgtype(resultBookingID), resultCode)
	if err != nil {
		return infra.WrapRepoErr("failed to complete idempotency record", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("idempotency record not found", nil, infra.KindNotFound)
	}
	return nil
}

const deleteExpiredLedgerSQL = `
DELETE FROM idempotency_records WHERE expires_at < now()
`

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredLedgerSQL)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to delete expired idempotency records", err)
	}
	return tag.RowsAffected(), nil
}
