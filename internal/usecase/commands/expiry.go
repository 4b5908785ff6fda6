package commands

import (
	"context"
	"log/slog"

	"barberbook/internal/domain/booking"
	"barberbook/internal/infra"
	"barberbook/internal/pkg/clock"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/shared"
)

type ExpiryCommands interface {
	// ExpireOverdue moves bookings whose payment deadline has passed
	// from pending_payment to expired, up to limit per call.
	ExpireOverdue(ctx context.Context, limit int) (int, error)
	// PurgeIdempotency removes ledger entries past their retention
	// window.
	PurgeIdempotency(ctx context.Context) (int64, error)
}

type expiryCommandsImpl struct {
	uow   shared.UnitOfWork
	cache shared.AvailabilityCache
	clock clock.Clock
}

func NewExpiryCommands(uow shared.UnitOfWork, cache shared.AvailabilityCache, clk clock.Clock) ExpiryCommands {
	return &expiryCommandsImpl{uow: uow, cache: cache, clock: clk}
}

func (c *expiryCommandsImpl) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := c.clock.Now()
	due, err := c.uow.CommandReads().DuePendingBookings(ctx, now, limit)
	if err != nil {
		return 0, errs.Mark(err, ErrStorageFailure)
	}

	expired := 0
	for _, snap := range due {
		snap := snap
		var moved bool
		err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
			moved = false
			if err := tx.LockProvider(ctx, snap.ProviderID); err != nil {
				return err
			}
			// Re-read under the lock: a webhook may have confirmed the
			// booking between the scan and now.
			cur, err := tx.Reads().BookingByID(ctx, snap.ID)
			if err != nil {
				return err
			}
			if booking.Status(cur.Status) != booking.StatusPendingPayment || cur.PaymentDueAt.After(now) {
				return nil
			}
			if err := tx.Bookings().Transition(ctx, cur.ID, cur.Version, booking.StatusExpired); err != nil {
				return err
			}
			moved = true
			return nil
		})
		switch {
		case err == nil && moved:
			expired++
			c.cache.Invalidate(ctx, snap.ProviderID)
		case err == nil:
			continue
		case infra.IsKind(err, infra.KindNotFound), infra.IsKind(err, infra.KindStaleVersion):
			// Lost a race with another writer; the next sweep settles it.
			continue
		default:
			slog.Error("expiry sweep failed for booking",
				"booking_id", snap.ID.String(), "error", err)
			return expired, errs.Mark(err, ErrStorageFailure)
		}
	}
	return expired, nil
}

func (c *expiryCommandsImpl) PurgeIdempotency(ctx context.Context) (int64, error) {
	var purged int64
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		var err error
		purged, err = tx.Idempotency().DeleteExpired(ctx)
		return err
	})
	if err != nil {
		return 0, errs.Mark(err, ErrStorageFailure)
	}
	return purged, nil
}
