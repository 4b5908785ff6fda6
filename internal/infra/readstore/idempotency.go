package readstore

import (
	"context"

	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"
	"barberbook/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgtype"
)

type IdempotencyReadStore struct {
	db db.DBTX
}

func NewIdempotencyReadStore(dbtx db.DBTX) *IdempotencyReadStore {
	return &IdempotencyReadStore{db: dbtx}
}

const getLedgerSQL = `
SELECT kind, key, status, request_hash, result_booking_id, result_code, expires_at
FROM idempotency_records
WHERE kind = $1 AND key = $2
`

func (r *IdempotencyReadStore) Get(ctx context.Context, kind shared.OpKind, key string) (*shared.IdempotencyRecord, error) {
	var (
		rowKind, rowKey, status, requestHash string
		resultBookingID                      pgtype.UUID
		resultCode                           pgtype.Text
		expiresAt                            pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, getLedgerSQL, string(kind), key).Scan(
		&rowKind, &rowKey, &status, &requestHash,
		&resultBookingID, &resultCode, &expiresAt,
	)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("idempotency record not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get idempotency record", err)
	}
	return &shared.IdempotencyRecord{
		Kind:            shared.OpKind(rowKind),
		Key:             rowKey,
		Status:          status,
		RequestHash:     requestHash,
		ResultBookingID: pgconv.UUIDPtrFromPgtype(resultBookingID),
		ResultCode:      pgconv.StringPtrFromPgtype(resultCode),
		ExpiresAt:       pgconv.TimeFromPgtype(expiresAt),
	}, nil
}
