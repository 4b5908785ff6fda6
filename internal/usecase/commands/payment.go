package commands

import (
	"context"
	"log/slog"

	"barberbook/internal/domain/booking"
	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/pkg/clock"
	"barberbook/internal/pkg/config"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrIntentNotAllowed = errs.New("booking is not awaiting payment")
	ErrPaymentTimeout   = errs.New("payment authority did not answer in time")
)

type PaymentCommands interface {
	// CreateIntent opens (or returns the already-open) payment intent
	// for a pending booking. Exactly one non-terminal intent exists per
	// booking.
	CreateIntent(ctx context.Context, bookingID, actorID uuid.UUID) (*payment.Intent, error)
	// ApplyEvent merges one verified payment-authority event into the
	// booking state, exactly once per event id.
	ApplyEvent(ctx context.Context, evt *payment.Event) error
}

type paymentCommandsImpl struct {
	uow     shared.UnitOfWork
	gateway shared.PaymentGateway
	cache   shared.AvailabilityCache
	clock   clock.Clock
	cfg     config.BookingConfig
}

func NewPaymentCommands(
	uow shared.UnitOfWork,
	gateway shared.PaymentGateway,
	cache shared.AvailabilityCache,
	clk clock.Clock,
	cfg config.Config,
) PaymentCommands {
	return &paymentCommandsImpl{
		uow:     uow,
		gateway: gateway,
		cache:   cache,
		clock:   clk,
		cfg:     cfg.Booking,
	}
}

func (c *paymentCommandsImpl) CreateIntent(ctx context.Context, bookingID, actorID uuid.UUID) (*payment.Intent, error) {
	reads := c.uow.CommandReads()

	snap, err := reads.BookingByID(ctx, bookingID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	if snap.CustomerID != actorID {
		return nil, ErrBookingAccess
	}
	if booking.Status(snap.Status) != booking.StatusPendingPayment {
		return nil, ErrIntentNotAllowed
	}

	if existing, err := reads.NonTerminalIntentByBooking(ctx, bookingID); err == nil {
		return existing, nil
	} else if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrStorageFailure)
	}

	intent, err := c.gateway.CreateIntent(ctx, shared.CreateIntentParams{
		BookingID:      bookingID,
		AmountCents:    snap.PriceCents,
		Currency:       "usd",
		IdempotencyKey: intentIdempotencyKey(bookingID),
	})
	if err != nil {
		if errs.IsAny(err, shared.ErrGatewayTimeout) {
			return nil, ErrPaymentTimeout
		}
		return nil, errs.Mark(err, ErrStorageFailure)
	}

	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if err := tx.Intents().Create(ctx, intent); err != nil {
			return err
		}
		return tx.Bookings().SetPaymentIntent(ctx, bookingID, snap.Version, intent.ID)
	})
	if err != nil {
		// The authority-side idempotency key makes a retried create
		// return this same intent, so a failed local write is safe.
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	return intent, nil
}

func (c *paymentCommandsImpl) ApplyEvent(ctx context.Context, evt *payment.Event) error {
	var providerID uuid.UUID
	expiresAt := c.clock.Now().Add(c.cfg.IdempotencyTTL)
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		// The claim commits or rolls back together with the apply, so a
		// failed apply leaves no ledger trace and the redelivery starts
		// clean instead of being swallowed as a duplicate.
		claimed, err := tx.Idempotency().TryInsert(ctx, shared.OpPaymentEvent, evt.ID, "", expiresAt)
		if err != nil {
			return err
		}
		if !claimed {
			// Duplicate delivery: the outcome of the first processing
			// stands, whatever it was.
			slog.Debug("duplicate payment event ignored", "event_id", evt.ID)
			return nil
		}

		intent, err := tx.Reads().IntentByID(ctx, evt.IntentID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				// Delivered ahead of the local intent row. Failing the
				// transaction makes the authority redeliver once the
				// row lands.
				slog.Warn("payment event precedes local intent",
					"event_id", evt.ID, "intent_id", evt.IntentID)
			}
			return err
		}

		snap, err := tx.Reads().BookingByID(ctx, intent.BookingID)
		if err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, snap.ProviderID); err != nil {
			return err
		}
		// Authoritative state, now that we hold the section.
		snap, err = tx.Reads().BookingByID(ctx, intent.BookingID)
		if err != nil {
			return err
		}
		providerID = snap.ProviderID

		applied, err := c.applyTransition(ctx, tx, evt, snap)
		if err != nil {
			return err
		}

		result := shared.ResultApplied
		if !applied {
			result = shared.ResultIgnored
		}
		id := snap.ID
		return tx.Idempotency().Complete(ctx, shared.OpPaymentEvent, evt.ID, &id, result)
	})
	if err != nil {
		return errs.Mark(err, ErrStorageFailure)
	}
	if providerID != uuid.Nil {
		c.cache.Invalidate(ctx, providerID)
	}
	return nil
}

// applyTransition maps the event onto the state machine. Events that
// would move a booking backward are no-ops, which is what makes
// reordered and replayed deliveries harmless.
func (c *paymentCommandsImpl) applyTransition(ctx context.Context, tx shared.Tx, evt *payment.Event, snap *shared.BookingSnapshot) (bool, error) {
	current := booking.Status(snap.Status)

	var (
		next         booking.Status
		intentStatus payment.IntentStatus
	)
	switch evt.Kind {
	case payment.EventSucceeded:
		next, intentStatus = booking.StatusConfirmed, payment.IntentSucceeded
	case payment.EventFailed, payment.EventCanceled:
		next, intentStatus = booking.StatusCanceled, payment.IntentFailed
	case payment.EventRefunded:
		next, intentStatus = booking.StatusRefunded, payment.IntentRefunded
	default:
		return false, nil
	}

	if !current.CanTransitionTo(next) {
		slog.Info("payment event is a no-op for current state",
			"event_id", evt.ID,
			"booking_id", snap.ID.String(),
			"status", snap.Status,
			"event_kind", string(evt.Kind))
		return false, nil
	}

	if err := tx.Bookings().Transition(ctx, snap.ID, snap.Version, next); err != nil {
		return false, err
	}
	if err := tx.Intents().UpdateStatus(ctx, evt.IntentID, intentStatus); err != nil {
		return false, err
	}
	return true, nil
}
