package uow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/infra/db"
	"barberbook/internal/infra/readstore"
	"barberbook/internal/infra/repository"
	"barberbook/internal/pkg/errs"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"
)

var (
	errTransactionBegin   = errs.New("failed to begin transaction")
	errTransactionCommit  = errs.New("failed to commit transaction")
	errMaxRetriesExceeded = errs.New("transaction failed after max retries")
)

type PostgresUoW struct {
	pool *pgxpool.Pool
}

func NewPostgresUoW(pool *pgxpool.Pool) shared.UnitOfWork {
	return &PostgresUoW{pool: pool}
}

// ReadCommitted prevents dirty reads while allowing concurrent writes;
// per-provider serialization comes from the advisory lock, not the
// isolation level.
func (u *PostgresUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return u.runInTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (u *PostgresUoW) CommandReads() shared.CommandReads {
	return &commandReads{dbtx: u.pool}
}

// Avoids defer accumulation in retry loops to prevent connection leaks
func (u *PostgresUoW) runInTxWithOptions(ctx context.Context, options pgx.TxOptions, fn func(ctx context.Context, tx shared.Tx) error) error {
	const maxRetries = 3
	base := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		pgxTx, err := u.pool.BeginTx(ctx, options)
		if err != nil {
			return errs.Mark(err, errTransactionBegin)
		}

		tx := &pgTx{dbtx: pgxTx}

		err = fn(ctx, tx)
		if err == nil {
			if err = pgxTx.Commit(ctx); err == nil {
				return nil
			}
			err = errs.Mark(err, errTransactionCommit)
		}

		if rollbackErr := pgxTx.Rollback(ctx); rollbackErr != nil {
			if !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				slog.Warn("rollback failed", "attempt", attempt+1, "error", rollbackErr.Error())
			}
		}

		if !shouldRetry(err, attempt, maxRetries) {
			if attempt == maxRetries {
				slog.Error("transaction failed after max retries",
					"attempts", attempt+1,
					"error", err.Error())
				return errs.Mark(err, errMaxRetriesExceeded)
			}
			return err
		}

		waitTime := calculateBackoff(attempt, base)

		slog.Warn("retrying transaction due to retryable error",
			"attempt", attempt+1,
			"wait_ms", waitTime.Milliseconds(),
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return errMaxRetriesExceeded
}

func shouldRetry(err error, attempt, maxRetries int) bool {
	return isRetryableError(err) && attempt < maxRetries
}

func calculateBackoff(attempt int, base time.Duration) time.Duration {
	waitTime := time.Duration(1<<attempt) * base
	jitter := cryptoRandInt63n(int64(waitTime / 5))
	return waitTime + time.Duration(jitter)
}

func cryptoRandInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	// Safe conversion: mask high bit to ensure positive int64
	uval := binary.BigEndian.Uint64(buf[:]) & 0x7FFFFFFFFFFFFFFF
	// #nosec G115 -- Intentionally safe conversion after masking
	return int64(uval) % n
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgErrCodeSerializationFailure, pgErrCodeDeadlockDetected:
		return true
	default:
		return false
	}
}

type pgTx struct {
	dbtx db.DBTX

	// Lazy-initialized repositories
	bookingRepo     shared.BookingRepository
	intentRepo      shared.PaymentIntentRepository
	idempotencyRepo shared.IdempotencyRepository
	commandReads    shared.CommandReads
}

// LockProvider serializes all booking-affecting writers for one
// provider inside the current transaction. hashtextextended folds the
// uuid into the bigint keyspace pg_advisory_xact_lock wants; the lock
// releases with the transaction.
func (t *pgTx) LockProvider(ctx context.Context, providerID uuid.UUID) error {
	_, err := t.dbtx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))",
		providerID.String())
	if err != nil {
		return infra.WrapRepoErr("failed to acquire provider lock", err)
	}
	return nil
}

func (t *pgTx) Bookings() shared.BookingRepository {
	if t.bookingRepo == nil {
		t.bookingRepo = repository.NewBookingRepository(t.dbtx)
	}
	return t.bookingRepo
}

func (t *pgTx) Intents() shared.PaymentIntentRepository {
	if t.intentRepo == nil {
		t.intentRepo = repository.NewPaymentIntentRepository(t.dbtx)
	}
	return t.intentRepo
}

func (t *pgTx) Idempotency() shared.IdempotencyRepository {
	if t.idempotencyRepo == nil {
		t.idempotencyRepo = repository.NewIdempotencyRepository(t.dbtx)
	}
	return t.idempotencyRepo
}

func (t *pgTx) Reads() shared.CommandReads {
	if t.commandReads == nil {
		t.commandReads = &commandReads{dbtx: t.dbtx}
	}
	return t.commandReads
}

type commandReads struct {
	dbtx db.DBTX

	// Lazy-initialized readstores
	providerStore     *readstore.ProviderReadStore
	availabilityStore *readstore.AvailabilityReadStore
	bookingStore      *readstore.BookingReadStore
	intentStore       *readstore.PaymentIntentReadStore
	idempotencyStore  *readstore.IdempotencyReadStore
}

func (r *commandReads) providers() *readstore.ProviderReadStore {
	if r.providerStore == nil {
		r.providerStore = readstore.NewProviderReadStore(r.dbtx)
	}
	return r.providerStore
}

func (r *commandReads) calendar() *readstore.AvailabilityReadStore {
	if r.availabilityStore == nil {
		r.availabilityStore = readstore.NewAvailabilityReadStore(r.dbtx)
	}
	return r.availabilityStore
}

func (r *commandReads) bookings() *readstore.BookingReadStore {
	if r.bookingStore == nil {
		r.bookingStore = readstore.NewBookingReadStore(r.dbtx)
	}
	return r.bookingStore
}

func (r *commandReads) intents() *readstore.PaymentIntentReadStore {
	if r.intentStore == nil {
		r.intentStore = readstore.NewPaymentIntentReadStore(r.dbtx)
	}
	return r.intentStore
}

func (r *commandReads) ledger() *readstore.IdempotencyReadStore {
	if r.idempotencyStore == nil {
		r.idempotencyStore = readstore.NewIdempotencyReadStore(r.dbtx)
	}
	return r.idempotencyStore
}

func (r *commandReads) ProviderByID(ctx context.Context, id uuid.UUID) (*shared.ProviderSnapshot, error) {
	return r.providers().FindByID(ctx, id)
}

func (r *commandReads) ServiceByID(ctx context.Context, providerID, serviceID uuid.UUID) (*shared.ServiceSnapshot, error) {
	return r.providers().FindService(ctx, providerID, serviceID)
}

func (r *commandReads) ScheduleByProvider(ctx context.Context, providerID uuid.UUID) (availability.Schedule, error) {
	return r.calendar().ScheduleByProvider(ctx, providerID)
}

func (r *commandReads) BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	return r.calendar().BusyIntervals(ctx, providerID, from, to)
}

func (r *commandReads) BookingByID(ctx context.Context, id uuid.UUID) (*shared.BookingSnapshot, error) {
	return r.bookings().SnapshotByID(ctx, id)
}

func (r *commandReads) IntentByID(ctx context.Context, intentID string) (*payment.Intent, error) {
	return r.intents().FindByID(ctx, intentID)
}

func (r *commandReads) NonTerminalIntentByBooking(ctx context.Context, bookingID uuid.UUID) (*payment.Intent, error) {
	return r.intents().FindNonTerminalByBooking(ctx, bookingID)
}

func (r *commandReads) IdempotencyByKey(ctx context.Context, kind shared.OpKind, key string) (*shared.IdempotencyRecord, error) {
	return r.ledger().Get(ctx, kind, key)
}

func (r *commandReads) DuePendingBookings(ctx context.Context, now time.Time, limit int) ([]*shared.BookingSnapshot, error) {
	return r.bookings().DuePending(ctx, now, limit)
}
