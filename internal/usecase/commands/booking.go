package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/domain/booking"
	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/pkg/clock"
	"barberbook/internal/pkg/config"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/queries"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound      = errs.New("provider not found")
	ErrServiceNotFound       = errs.New("service not found")
	ErrInvalidTimeSlot       = errs.New("invalid time slot")
	ErrBookingConflict       = errs.New("booking conflict")
	ErrBookingNotFound       = errs.New("booking not found")
	ErrBookingAccess         = errs.New("booking belongs to another user")
	ErrStaleVersion          = errs.New("stale booking version")
	ErrCancelWindowClosed    = errs.New("cancel window closed")
	ErrCancelNotAllowed      = errs.New("booking cannot be canceled in its current state")
	ErrDuplicateRequest      = errs.New("idempotency key reused with different request")
	ErrIdempotencyInProgress = errs.New("request with this idempotency key is in progress")
	ErrStorageFailure        = errs.New("storage operation failed")
)

type CreateBookingParams struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
}

type CreateBookingResult struct {
	Booking    *queries.BookingView
	IsReplayed bool
}

type BookingCommands interface {
	Create(ctx context.Context, params CreateBookingParams, customerID uuid.UUID, idempotencyKey string) (*CreateBookingResult, error)
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID, expectedVersion int32) (*queries.BookingView, error)
}

type bookingCommandsImpl struct {
	uow            shared.UnitOfWork
	gateway        shared.PaymentGateway
	cache          shared.AvailabilityCache
	bookingQueries queries.BookingQueries
	clock          clock.Clock
	cfg            config.BookingConfig
}

func NewBookingCommands(
	uow shared.UnitOfWork,
	gateway shared.PaymentGateway,
	cache shared.AvailabilityCache,
	bookingQueries queries.BookingQueries,
	clk clock.Clock,
	cfg config.Config,
) BookingCommands {
	return &bookingCommandsImpl{
		uow:            uow,
		gateway:        gateway,
		cache:          cache,
		bookingQueries: bookingQueries,
		clock:          clk,
		cfg:            cfg.Booking,
	}
}

func (c *bookingCommandsImpl) Create(
	ctx context.Context,
	params CreateBookingParams,
	customerID uuid.UUID,
	idempotencyKey string,
) (*CreateBookingResult, error) {
	requestHash := hashCreateRequest(params, customerID)

	// Replay fast path. The claim itself happens inside reserve, so
	// validation failures never write to the ledger and a failed
	// reservation cannot strand the key in processing.
	record, err := c.lookupRequest(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return c.replay(ctx, record, requestHash)
	}

	svc, slot, err := c.validateRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	entity, err := booking.NewBooking(
		params.ProviderID, customerID, svc.ID,
		svc.Name, svc.PriceCents,
		slot, idempotencyKey,
		c.clock.Now(), c.cfg.PaymentTTL,
	)
	if err != nil {
		return nil, errs.Mark(err, ErrInvalidTimeSlot)
	}

	record, err = c.reserve(ctx, entity, idempotencyKey, requestHash)
	if err != nil {
		return nil, err
	}
	if record != nil {
		// Another call claimed the key between the lookup and the
		// reserve transaction.
		return c.replay(ctx, record, requestHash)
	}
	c.cache.Invalidate(ctx, params.ProviderID)

	c.openIntentBestEffort(ctx, entity)

	view, err := c.bookingQueries.GetByIDSystem(ctx, entity.ID())
	if err != nil {
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	return &CreateBookingResult{Booking: view, IsReplayed: false}, nil
}

// lookupRequest reads the ledger entry for this key, nil when the key
// has never been seen.
func (c *bookingCommandsImpl) lookupRequest(ctx context.Context, key string) (*shared.IdempotencyRecord, error) {
	record, err := c.uow.CommandReads().IdempotencyByKey(ctx, shared.OpBookingRequest, key)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, nil
		}
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	return record, nil
}

// replay returns the stored outcome for a repeated idempotency key
// without re-executing any side effects.
func (c *bookingCommandsImpl) replay(ctx context.Context, record *shared.IdempotencyRecord, requestHash string) (*CreateBookingResult, error) {
	if record.RequestHash != requestHash {
		return nil, ErrDuplicateRequest
	}
	if record.Status != shared.IdemStatusCompleted {
		return nil, ErrIdempotencyInProgress
	}
	if record.ResultCode != nil && *record.ResultCode == shared.ResultConflict {
		return nil, ErrBookingConflict
	}
	if record.ResultBookingID == nil {
		return nil, errs.Mark(errs.New("completed ledger entry missing booking id"), ErrStorageFailure)
	}
	view, err := c.bookingQueries.GetByIDSystem(ctx, *record.ResultBookingID)
	if err != nil {
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	return &CreateBookingResult{Booking: view, IsReplayed: true}, nil
}

func (c *bookingCommandsImpl) validateRequest(ctx context.Context, params CreateBookingParams) (*shared.ServiceSnapshot, booking.TimeSlot, error) {
	reads := c.uow.CommandReads()

	provider, err := reads.ProviderByID(ctx, params.ProviderID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, booking.TimeSlot{}, ErrProviderNotFound
		}
		return nil, booking.TimeSlot{}, errs.Mark(err, ErrStorageFailure)
	}
	if !provider.Active {
		return nil, booking.TimeSlot{}, ErrProviderNotFound
	}

	svc, err := reads.ServiceByID(ctx, params.ProviderID, params.ServiceID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, booking.TimeSlot{}, ErrServiceNotFound
		}
		return nil, booking.TimeSlot{}, errs.Mark(err, ErrStorageFailure)
	}

	slot, err := booking.NewTimeSlot(params.StartTime, params.EndTime)
	if err != nil {
		return nil, booking.TimeSlot{}, errs.Mark(err, ErrInvalidTimeSlot)
	}
	if slot.Duration() != time.Duration(svc.DurationMin)*time.Minute {
		return nil, booking.TimeSlot{}, errs.Mark(errs.New("slot duration does not match service"), ErrInvalidTimeSlot)
	}
	return svc, slot, nil
}

// reserve claims the idempotency key and runs the conflict check and
// the insert inside the provider's critical section, all in one
// transaction. A failed reservation rolls the claim back with it; the
// loser of a race always gets ErrBookingConflict. A non-nil record
// means the key was already claimed and the caller should replay.
func (c *bookingCommandsImpl) reserve(ctx context.Context, entity *booking.Booking, idempotencyKey, requestHash string) (*shared.IdempotencyRecord, error) {
	var (
		conflict bool
		existing *shared.IdempotencyRecord
	)
	expiresAt := c.clock.Now().Add(c.cfg.IdempotencyTTL)
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		conflict, existing = false, nil

		claimed, err := tx.Idempotency().TryInsert(ctx, shared.OpBookingRequest, idempotencyKey, requestHash, expiresAt)
		if err != nil {
			return err
		}
		if !claimed {
			existing, err = tx.Reads().IdempotencyByKey(ctx, shared.OpBookingRequest, idempotencyKey)
			return err
		}

		if err := tx.LockProvider(ctx, entity.ProviderID()); err != nil {
			return err
		}

		schedule, err := tx.Reads().ScheduleByProvider(ctx, entity.ProviderID())
		if err != nil {
			return err
		}
		busy, err := tx.Reads().BusyIntervals(ctx, entity.ProviderID(), entity.Slot().Start(), entity.Slot().End())
		if err != nil {
			return err
		}

		iv := availability.Interval{Start: entity.Slot().Start(), End: entity.Slot().End()}
		if !schedule.IsFree(iv, busy) {
			conflict = true
			// The committed conflict outcome makes replays of this key
			// deterministic.
			return tx.Idempotency().Complete(ctx, shared.OpBookingRequest, idempotencyKey, nil, shared.ResultConflict)
		}

		if err := tx.Bookings().Create(ctx, entity); err != nil {
			return err
		}
		id := entity.ID()
		return tx.Idempotency().Complete(ctx, shared.OpBookingRequest, idempotencyKey, &id, shared.ResultCreated)
	})
	if err != nil {
		// Exclusion-constraint backstop: the lock already serializes
		// writers, but a constraint hit is still reported as a plain
		// conflict, with the ledger outcome recorded in a fresh
		// transaction since the first one rolled back whole.
		if infra.IsKind(err, infra.KindConflict) {
			c.recordConflictOutcome(ctx, idempotencyKey, requestHash, expiresAt)
			return nil, ErrBookingConflict
		}
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	if conflict {
		return nil, ErrBookingConflict
	}
	return existing, nil
}

func (c *bookingCommandsImpl) recordConflictOutcome(ctx context.Context, idempotencyKey, requestHash string, expiresAt time.Time) {
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if _, err := tx.Idempotency().TryInsert(ctx, shared.OpBookingRequest, idempotencyKey, requestHash, expiresAt); err != nil {
			return err
		}
		return tx.Idempotency().Complete(ctx, shared.OpBookingRequest, idempotencyKey, nil, shared.ResultConflict)
	})
	if err != nil {
		slog.Warn("failed to record conflict outcome", "error", err.Error())
	}
}

// openIntentBestEffort opens the payment intent right after the slot is
// held. Failure here is not fatal: the booking stays pending_payment
// and either a later create-intent call or the expiry sweeper resolves
// it.
func (c *bookingCommandsImpl) openIntentBestEffort(ctx context.Context, entity *booking.Booking) {
	params := shared.CreateIntentParams{
		BookingID:      entity.ID(),
		AmountCents:    entity.PriceCents(),
		Currency:       "usd",
		IdempotencyKey: intentIdempotencyKey(entity.ID()),
	}
	intent, err := c.gateway.CreateIntent(ctx, params)
	if err != nil {
		slog.Warn("payment intent creation deferred",
			"booking_id", entity.ID().String(),
			"error", err.Error())
		return
	}

	err = c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if err := tx.Intents().Create(ctx, intent); err != nil {
			return err
		}
		return tx.Bookings().SetPaymentIntent(ctx, entity.ID(), entity.Version(), intent.ID)
	})
	if err != nil {
		slog.Warn("failed to attach payment intent",
			"booking_id", entity.ID().String(),
			"intent_id", intent.ID,
			"error", err.Error())
	}
}

func (c *bookingCommandsImpl) Cancel(
	ctx context.Context,
	bookingID, actorID uuid.UUID,
	expectedVersion int32,
) (*queries.BookingView, error) {
	var (
		needRefund bool
		intentID   string
		providerID uuid.UUID
	)

	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		// First read is only to learn the provider for the lock; the
		// authoritative snapshot is re-read under it.
		snap, err := tx.Reads().BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, snap.ProviderID); err != nil {
			return err
		}
		snap, err = tx.Reads().BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		providerID = snap.ProviderID

		if snap.CustomerID != actorID && snap.ProviderID != actorID {
			return ErrBookingAccess
		}
		if snap.Version != expectedVersion {
			return ErrStaleVersion
		}
		if c.clock.Now().After(snap.StartTime.Add(-c.cfg.CancelCutoff)) {
			return ErrCancelWindowClosed
		}

		switch booking.Status(snap.Status) {
		case booking.StatusPendingPayment:
		case booking.StatusConfirmed:
			if snap.PaymentIntentID != nil {
				needRefund = true
				intentID = *snap.PaymentIntentID
			}
		default:
			return ErrCancelNotAllowed
		}

		return tx.Bookings().Transition(ctx, bookingID, expectedVersion, booking.StatusCanceled)
	})
	if err != nil {
		return nil, c.mapCancelErr(err)
	}
	c.cache.Invalidate(ctx, providerID)

	if needRefund {
		c.refundBestEffort(ctx, bookingID, intentID, expectedVersion+1)
	}

	view, err := c.bookingQueries.GetByIDSystem(ctx, bookingID)
	if err != nil {
		return nil, errs.Mark(err, ErrStorageFailure)
	}
	return view, nil
}

// refundBestEffort asks the authority for a refund and records the
// terminal refunded state. The refund call is idempotent; a timeout
// leaves the booking canceled until the refund webhook lands.
func (c *bookingCommandsImpl) refundBestEffort(ctx context.Context, bookingID uuid.UUID, intentID string, version int32) {
	if err := c.gateway.Refund(ctx, intentID, refundIdempotencyKey(bookingID)); err != nil {
		slog.Warn("refund deferred to webhook",
			"booking_id", bookingID.String(),
			"intent_id", intentID,
			"error", err.Error())
		return
	}
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if err := tx.Intents().UpdateStatus(ctx, intentID, payment.IntentRefunded); err != nil {
			return err
		}
		return tx.Bookings().Transition(ctx, bookingID, version, booking.StatusRefunded)
	})
	if err != nil {
		slog.Warn("failed to record refund",
			"booking_id", bookingID.String(),
			"error", err.Error())
	}
}

func (c *bookingCommandsImpl) mapCancelErr(err error) error {
	switch {
	case infra.IsKind(err, infra.KindNotFound):
		return ErrBookingNotFound
	case infra.IsKind(err, infra.KindStaleVersion):
		return ErrStaleVersion
	}
	switch {
	case errs.IsAny(err, ErrBookingAccess, ErrStaleVersion, ErrCancelWindowClosed, ErrCancelNotAllowed):
		return err
	default:
		return errs.Mark(err, ErrStorageFailure)
	}
}

func hashCreateRequest(params CreateBookingParams, customerID uuid.UUID) string {
	data, _ := json.Marshal(map[string]any{
		"provider_id": params.ProviderID,
		"service_id":  params.ServiceID,
		"start_time":  params.StartTime.UTC(),
		"end_time":    params.EndTime.UTC(),
		"customer_id": customerID,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func intentIdempotencyKey(bookingID uuid.UUID) string {
	return "booking-intent:" + bookingID.String()
}

func refundIdempotencyKey(bookingID uuid.UUID) string {
	return "booking-refund:" + bookingID.String()
}
