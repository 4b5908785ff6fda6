package readstore

import (
	"context"

	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/pkg/pgconv"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type ProviderReadStore struct {
	db db.DBTX
}

func NewProviderReadStore(dbtx db.DBTX) *ProviderReadStore {
	return &ProviderReadStore{db: dbtx}
}

func (r *ProviderReadStore) FindByID(ctx context.Context, id uuid.UUID) (*shared.ProviderSnapshot, error) {
	var (
		pid         pgtype.UUID
		displayName string
		active      bool
	)
	err := r.db.QueryRow(ctx,
		"SELECT id, display_name, active FROM providers WHERE id = $1",
		pgconv.UUIDToPgtype(id)).Scan(&pid, &displayName, &active)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("provider not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find provider by ID", err)
	}
	return &shared.ProviderSnapshot{
		ID:          uuid.UUID(pid.Bytes),
		DisplayName: displayName,
		Active:      active,
	}, nil
}

const findServiceSQL = `
SELECT id, provider_id, name, price_cents, duration_min
FROM provider_services
WHERE id = $1 AND provider_id = $2
`

func (r *ProviderReadStore) FindService(ctx context.Context, providerID, serviceID uuid.UUID) (*shared.ServiceSnapshot, error) {
	var (
		sid, pid    pgtype.UUID
		name        string
		priceCents  int64
		durationMin int32
	)
	err := r.db.QueryRow(ctx, findServiceSQL,
		pgconv.UUIDToPgtype(serviceID), pgconv.UUIDToPgtype(providerID)).
		Scan(&sid, &pid, &name, &priceCents, &durationMin)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("service not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find provider service", err)
	}
	return &shared.ServiceSnapshot{
		ID:          uuid.UUID(sid.Bytes),
		ProviderID:  uuid.UUID(pid.Bytes),
		Name:        name,
		PriceCents:  priceCents,
		DurationMin: durationMin,
	}, nil
}
