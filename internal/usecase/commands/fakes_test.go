//go:build unit

package commands_test

import (
	"context"
	"errors"
	"time"

	"barberbook/internal/domain/availability"
	"barberbook/internal/domain/booking"
	"barberbook/internal/domain/payment"
	"barberbook/internal/infra"
	"barberbook/internal/usecase/queries"
	"barberbook/internal/usecase/shared"

	"github.com/google/uuid"
)

type ledgerKey struct {
	kind shared.OpKind
	key  string
}

// fakeStore is an in-memory stand-in for the whole persistence stack.
// It implements UnitOfWork, Tx and every repository, running each
// Within callback against shared maps so tests can inspect the state a
// command left behind.
type fakeStore struct {
	providers map[uuid.UUID]*shared.ProviderSnapshot
	services  map[uuid.UUID]*shared.ServiceSnapshot
	schedules map[uuid.UUID]availability.Schedule
	bookings  map[uuid.UUID]*shared.BookingSnapshot
	intents   map[string]*payment.Intent
	ledger    map[ledgerKey]*shared.IdempotencyRecord

	lockedProviders []uuid.UUID
	now             time.Time

	createBookingErr error
	// withinErr fails the next Within call before the callback runs,
	// which is what a rolled-back transaction looks like from outside.
	withinErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: make(map[uuid.UUID]*shared.ProviderSnapshot),
		services:  make(map[uuid.UUID]*shared.ServiceSnapshot),
		schedules: make(map[uuid.UUID]availability.Schedule),
		bookings:  make(map[uuid.UUID]*shared.BookingSnapshot),
		intents:   make(map[string]*payment.Intent),
		ledger:    make(map[ledgerKey]*shared.IdempotencyRecord),
	}
}

func notFoundErr(msg string) error {
	return infra.WrapRepoErr(msg, nil, infra.KindNotFound)
}

// errStorageDown scripts a transient storage failure.
var errStorageDown = errors.New("storage unavailable")

// openAllWeek is a schedule with no closing hours, so conflict tests
// only exercise busy-interval overlap.
func openAllWeek() availability.Schedule {
	windows := make([]availability.WorkingWindow, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		windows = append(windows, availability.WorkingWindow{
			Weekday:     d,
			StartMinute: 0,
			EndMinute:   24 * 60,
		})
	}
	return availability.Schedule{Windows: windows}
}

// --- shared.UnitOfWork ---

func (s *fakeStore) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	if s.withinErr != nil {
		err := s.withinErr
		s.withinErr = nil
		return err
	}
	// Ledger writes roll back with the failed callback, mirroring the
	// claim-in-transaction contract. The commands under test fail
	// before touching any other table, so only the ledger needs it.
	saved := make(map[ledgerKey]*shared.IdempotencyRecord, len(s.ledger))
	for k, rec := range s.ledger {
		cp := *rec
		saved[k] = &cp
	}
	if err := fn(ctx, s); err != nil {
		s.ledger = saved
		return err
	}
	return nil
}

func (s *fakeStore) CommandReads() shared.CommandReads { return s }

// --- shared.Tx ---

func (s *fakeStore) LockProvider(_ context.Context, providerID uuid.UUID) error {
	s.lockedProviders = append(s.lockedProviders, providerID)
	return nil
}

func (s *fakeStore) Bookings() shared.BookingRepository        { return fakeBookingRepo{s} }
func (s *fakeStore) Intents() shared.PaymentIntentRepository   { return fakeIntentRepo{s} }
func (s *fakeStore) Idempotency() shared.IdempotencyRepository { return s }
func (s *fakeStore) Reads() shared.CommandReads                { return s }

// fakeBookingRepo and fakeIntentRepo split the two Create signatures
// that one receiver cannot carry.
type fakeBookingRepo struct{ s *fakeStore }

func (r fakeBookingRepo) Create(_ context.Context, b *booking.Booking) error {
	s := r.s
	if s.createBookingErr != nil {
		return s.createBookingErr
	}
	s.bookings[b.ID()] = &shared.BookingSnapshot{
		ID:             b.ID(),
		ProviderID:     b.ProviderID(),
		CustomerID:     b.CustomerID(),
		ServiceID:      b.ServiceID(),
		ServiceName:    b.ServiceName(),
		PriceCents:     b.PriceCents(),
		StartTime:      b.Slot().Start(),
		EndTime:        b.Slot().End(),
		Status:         string(b.Status()),
		PaymentDueAt:   b.PaymentDueAt(),
		IdempotencyKey: b.IdempotencyKey(),
		Version:        b.Version(),
		CreatedAt:      b.CreatedAt(),
		UpdatedAt:      b.UpdatedAt(),
	}
	return nil
}

func (r fakeBookingRepo) Transition(_ context.Context, id uuid.UUID, expectedVersion int32, next booking.Status) error {
	snap, ok := r.s.bookings[id]
	if !ok {
		return notFoundErr("booking not found")
	}
	if snap.Version != expectedVersion {
		return infra.WrapRepoErr("booking version is stale", nil, infra.KindStaleVersion)
	}
	snap.Status = string(next)
	snap.Version++
	return nil
}

func (r fakeBookingRepo) SetPaymentIntent(_ context.Context, id uuid.UUID, expectedVersion int32, intentID string) error {
	snap, ok := r.s.bookings[id]
	if !ok {
		return notFoundErr("booking not found")
	}
	if snap.Version != expectedVersion {
		return infra.WrapRepoErr("booking version is stale", nil, infra.KindStaleVersion)
	}
	snap.PaymentIntentID = &intentID
	snap.Version++
	return nil
}

type fakeIntentRepo struct{ s *fakeStore }

func (r fakeIntentRepo) Create(_ context.Context, intent *payment.Intent) error {
	cp := *intent
	r.s.intents[intent.ID] = &cp
	return nil
}

func (r fakeIntentRepo) UpdateStatus(_ context.Context, intentID string, status payment.IntentStatus) error {
	intent, ok := r.s.intents[intentID]
	if !ok {
		return notFoundErr("payment intent not found")
	}
	intent.Status = status
	return nil
}

// --- shared.IdempotencyRepository ---

func (s *fakeStore) TryInsert(_ context.Context, kind shared.OpKind, key, requestHash string, expiresAt time.Time) (bool, error) {
	k := ledgerKey{kind: kind, key: key}
	if _, exists := s.ledger[k]; exists {
		return false, nil
	}
	s.ledger[k] = &shared.IdempotencyRecord{
		Kind:        kind,
		Key:         key,
		Status:      shared.IdemStatusProcessing,
		RequestHash: requestHash,
		ExpiresAt:   expiresAt,
	}
	return true, nil
}

func (s *fakeStore) Complete(_ context.Context, kind shared.OpKind, key string, resultBookingID *uuid.UUID, resultCode string) error {
	k := ledgerKey{kind: kind, key: key}
	rec, ok := s.ledger[k]
	if !ok {
		return notFoundErr("ledger entry not found")
	}
	rec.Status = shared.IdemStatusCompleted
	rec.ResultBookingID = resultBookingID
	rec.ResultCode = &resultCode
	return nil
}

func (s *fakeStore) DeleteExpired(_ context.Context) (int64, error) {
	var deleted int64
	for k, rec := range s.ledger {
		if rec.ExpiresAt.Before(s.now) {
			delete(s.ledger, k)
			deleted++
		}
	}
	return deleted, nil
}

// --- shared.CommandReads ---

func (s *fakeStore) ProviderByID(_ context.Context, id uuid.UUID) (*shared.ProviderSnapshot, error) {
	p, ok := s.providers[id]
	if !ok {
		return nil, notFoundErr("provider not found")
	}
	return p, nil
}

func (s *fakeStore) ServiceByID(_ context.Context, providerID, serviceID uuid.UUID) (*shared.ServiceSnapshot, error) {
	svc, ok := s.services[serviceID]
	if !ok || svc.ProviderID != providerID {
		return nil, notFoundErr("service not found")
	}
	return svc, nil
}

func (s *fakeStore) ScheduleByProvider(_ context.Context, providerID uuid.UUID) (availability.Schedule, error) {
	sched, ok := s.schedules[providerID]
	if !ok {
		return availability.Schedule{}, notFoundErr("provider not found")
	}
	return sched, nil
}

func (s *fakeStore) BusyIntervals(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.Interval, error) {
	window := availability.Interval{Start: from, End: to}
	var busy []availability.Interval
	for _, snap := range s.bookings {
		if snap.ProviderID != providerID || !booking.Status(snap.Status).HoldsSlot() {
			continue
		}
		iv := availability.Interval{Start: snap.StartTime, End: snap.EndTime}
		if iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	return busy, nil
}

func (s *fakeStore) BookingByID(_ context.Context, id uuid.UUID) (*shared.BookingSnapshot, error) {
	snap, ok := s.bookings[id]
	if !ok {
		return nil, notFoundErr("booking not found")
	}
	cp := *snap
	return &cp, nil
}

func (s *fakeStore) IntentByID(_ context.Context, intentID string) (*payment.Intent, error) {
	intent, ok := s.intents[intentID]
	if !ok {
		return nil, notFoundErr("payment intent not found")
	}
	cp := *intent
	return &cp, nil
}

func (s *fakeStore) NonTerminalIntentByBooking(_ context.Context, bookingID uuid.UUID) (*payment.Intent, error) {
	for _, intent := range s.intents {
		if intent.BookingID == bookingID && !intent.Status.IsTerminal() {
			cp := *intent
			return &cp, nil
		}
	}
	return nil, notFoundErr("payment intent not found")
}

func (s *fakeStore) IdempotencyByKey(_ context.Context, kind shared.OpKind, key string) (*shared.IdempotencyRecord, error) {
	rec, ok := s.ledger[ledgerKey{kind: kind, key: key}]
	if !ok {
		return nil, notFoundErr("ledger entry not found")
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) DuePendingBookings(_ context.Context, now time.Time, limit int) ([]*shared.BookingSnapshot, error) {
	var due []*shared.BookingSnapshot
	for _, snap := range s.bookings {
		if len(due) >= limit {
			break
		}
		if snap.Status == string(booking.StatusPendingPayment) && snap.PaymentDueAt.Before(now) {
			cp := *snap
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *fakeStore) ledgerRecord(kind shared.OpKind, key string) *shared.IdempotencyRecord {
	return s.ledger[ledgerKey{kind: kind, key: key}]
}

func intentForBooking(id string, bookingID uuid.UUID) *payment.Intent {
	return &payment.Intent{
		ID:          id,
		BookingID:   bookingID,
		AmountCents: 3500,
		Currency:    "usd",
		Status:      payment.IntentCreated,
	}
}

// fakeGateway scripts the payment authority.
type fakeGateway struct {
	nextIntentID string
	createErr    error
	refundErr    error

	createCalls int
	refunded    []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextIntentID: "pi_test_1"}
}

func (g *fakeGateway) CreateIntent(_ context.Context, params shared.CreateIntentParams) (*payment.Intent, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Intent{
		ID:             g.nextIntentID,
		BookingID:      params.BookingID,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		Status:         payment.IntentCreated,
		ClientSecret:   g.nextIntentID + "_secret",
		IdempotencyKey: params.IdempotencyKey,
	}, nil
}

func (g *fakeGateway) Refund(_ context.Context, intentID, _ string) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded = append(g.refunded, intentID)
	return nil
}

// fakeCache records invalidations.
type fakeCache struct {
	invalidated []uuid.UUID
}

func (c *fakeCache) Invalidate(_ context.Context, providerID uuid.UUID) {
	c.invalidated = append(c.invalidated, providerID)
}

// fakeBookingQueries serves views straight from the fake store.
type fakeBookingQueries struct {
	store *fakeStore
}

func (q *fakeBookingQueries) GetByID(ctx context.Context, _ uuid.UUID, id uuid.UUID) (*queries.BookingView, error) {
	return q.GetByIDSystem(ctx, id)
}

func (q *fakeBookingQueries) GetByIDSystem(_ context.Context, id uuid.UUID) (*queries.BookingView, error) {
	snap, ok := q.store.bookings[id]
	if !ok {
		return nil, queries.ErrBookingNotFound
	}
	return &queries.BookingView{
		ID:              snap.ID,
		ProviderID:      snap.ProviderID,
		CustomerID:      snap.CustomerID,
		ServiceID:       snap.ServiceID,
		ServiceName:     snap.ServiceName,
		PriceCents:      snap.PriceCents,
		StartTime:       snap.StartTime,
		EndTime:         snap.EndTime,
		Status:          snap.Status,
		PaymentIntentID: snap.PaymentIntentID,
		PaymentDueAt:    snap.PaymentDueAt,
		Version:         snap.Version,
		CreatedAt:       snap.CreatedAt,
		UpdatedAt:       snap.UpdatedAt,
	}, nil
}

func (q *fakeBookingQueries) ListByCustomer(_ context.Context, customerID uuid.UUID, limit int) ([]*queries.BookingListItem, error) {
	var items []*queries.BookingListItem
	for _, snap := range q.store.bookings {
		if len(items) >= limit {
			break
		}
		if snap.CustomerID != customerID {
			continue
		}
		items = append(items, &queries.BookingListItem{
			ID:          snap.ID,
			ProviderID:  snap.ProviderID,
			ServiceName: snap.ServiceName,
			PriceCents:  snap.PriceCents,
			StartTime:   snap.StartTime,
			EndTime:     snap.EndTime,
			Status:      snap.Status,
			CreatedAt:   snap.CreatedAt,
		})
	}
	return items, nil
}
