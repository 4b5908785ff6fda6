package components

import (
	"barberbook/internal/infra/db"
	"barberbook/internal/infra/readstore"
	"barberbook/internal/infra/rediscache"
	"barberbook/internal/infra/uow"
	"barberbook/internal/pkg/config"
	"barberbook/internal/usecase/queries"
	"barberbook/internal/usecase/shared"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,

		// UnitOfWork
		fx.Annotate(
			uow.NewPostgresUoW,
			fx.As(new(shared.UnitOfWork)),
		),

		// Booking read side
		fx.Annotate(
			readstore.NewBookingReadStore,
			fx.As(new(queries.BookingReadStore)),
		),

		// Availability read side, fronted by Redis
		readstore.NewAvailabilityReadStore,
		fx.Annotate(
			NewCachedAvailability,
			fx.As(new(queries.AvailabilityReadStore)),
			fx.As(new(shared.AvailabilityCache)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) db.DBTX {
	return pool
}

func NewCachedAvailability(rdb *redis.Client, inner *readstore.AvailabilityReadStore, cfg config.Config) *rediscache.AvailabilityCache {
	return rediscache.NewAvailabilityCache(rdb, inner, cfg)
}
